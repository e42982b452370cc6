package service

import (
	"sort"
	"time"

	"github.com/noah-isme/mission-gateway/internal/models"
)

// SortMessages returns messages ordered ascending by creation time. Messages without a
// timestamp come first and ties keep server id order, so repeated sorting is stable.
func SortMessages(messages []models.Message) []models.Message {
	sorted := make([]models.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// SortConversations orders conversations by recency: last update, then creation, then id.
func SortConversations(conversations []models.Conversation) []models.Conversation {
	sorted := make([]models.Conversation, len(conversations))
	copy(sorted, conversations)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := recency(sorted[i]), recency(sorted[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}

func recency(c models.Conversation) time.Time {
	if c.UpdatedAt != nil && !c.UpdatedAt.IsZero() {
		return c.UpdatedAt.Time
	}
	if c.CreatedAt != nil {
		return c.CreatedAt.Time
	}
	return time.Time{}
}

func confirmedEntry(message models.Message) models.TimelineEntry {
	entry := models.TimelineEntry{
		Ref:     models.ConfirmedRef(message.ID),
		Kind:    message.Kind,
		Content: message.Content,
		State:   models.DeliveryConfirmed,
	}
	if message.CreatedAt != nil {
		entry.CreatedAt = message.CreatedAt.Time
	}
	return entry
}

// chatTimeline holds the messages shown for one conversation.
type chatTimeline struct {
	conversationID int64
	entries        []models.TimelineEntry
}

func (t *chatTimeline) append(entry models.TimelineEntry) {
	t.entries = append(t.entries, entry)
}

// mark updates the entry carrying localID. It reports false when the entry is gone.
func (t *chatTimeline) mark(localID string, state models.DeliveryState) (models.TimelineEntry, bool) {
	for i := range t.entries {
		if t.entries[i].Ref.LocalID() == localID {
			t.entries[i].State = state
			return t.entries[i], true
		}
	}
	return models.TimelineEntry{}, false
}

// reconcile replaces the confirmed part of the timeline with the platform history. Local
// entries still pending or failed stay after it; delivered ones are now in the history.
func (t *chatTimeline) reconcile(history []models.Message) {
	next := make([]models.TimelineEntry, 0, len(history)+len(t.entries))
	for _, message := range history {
		next = append(next, confirmedEntry(message))
	}
	for _, entry := range t.entries {
		if entry.Ref.Pending() && entry.State != models.DeliveryDelivered {
			next = append(next, entry)
		}
	}
	t.entries = next
}

func (t *chatTimeline) snapshot() []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
