package models

import (
	"encoding/json"
	"time"
)

// Journal actions recorded for workflow operations.
const (
	JournalActionApprove            = "MISSION_APPROVE"
	JournalActionEdit               = "MISSION_EDIT"
	JournalActionDiscard            = "MISSION_DISCARD"
	JournalActionTransition         = "MISSION_TRANSITION"
	JournalActionEnroll             = "ASSIGNMENT_ENROLL"
	JournalActionEvidence           = "ASSIGNMENT_EVIDENCE"
	JournalActionConversationCreate = "CONVERSATION_CREATE"
	JournalActionConversationRename = "CONVERSATION_RENAME"
	JournalActionConversationDelete = "CONVERSATION_DELETE"
	JournalActionLogin              = "SESSION_LOGIN"
	JournalActionLogout             = "SESSION_LOGOUT"
)

// Journal entities.
const (
	JournalEntityMission      = "MISSION"
	JournalEntityAssignment   = "ASSIGNMENT"
	JournalEntityConversation = "CONVERSATION"
	JournalEntitySession      = "SESSION"
)

// JournalOutcome classifies how a workflow action ended.
type JournalOutcome string

// Journal outcomes.
const (
	JournalSuccess JournalOutcome = "SUCCESS"
	JournalFailed  JournalOutcome = "FAILED"
	JournalNoop    JournalOutcome = "NOOP"
)

// JournalEntry is one persisted workflow action.
type JournalEntry struct {
	ID            string          `db:"id" json:"id"`
	InstitutionID int64           `db:"institution_id" json:"institution_id,omitempty"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Role          UserRole        `db:"role" json:"role"`
	Action        string          `db:"action" json:"action"`
	Entity        string          `db:"entity" json:"entity"`
	EntityID      *string         `db:"entity_id" json:"entity_id,omitempty"`
	Outcome       JournalOutcome  `db:"outcome" json:"outcome"`
	Detail        json.RawMessage `db:"detail" json:"detail,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	InstitutionID int64
	Entity        string
	EntityID      string
	UserID        int64
	Limit         int
}
