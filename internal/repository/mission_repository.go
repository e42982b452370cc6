package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
)

// MissionRepository reads and mutates missions on the platform.
type MissionRepository struct {
	client *platform.Client
}

// NewMissionRepository constructs the repository.
func NewMissionRepository(client *platform.Client) *MissionRepository {
	return &MissionRepository{client: client}
}

// ListByStatus returns an institution's missions in one status. An empty status lists every mission.
// The platform answers 404 when nothing matches, which is reported as an empty listing.
func (r *MissionRepository) ListByStatus(ctx context.Context, institutionID int64, status models.MissionStatus) ([]models.Mission, error) {
	query := url.Values{"idInstitucion": {strconv.FormatInt(institutionID, 10)}}
	if status != "" {
		query.Set("estado", string(status))
	}
	var missions []models.Mission
	if err := r.client.Get(ctx, "mission.list", "/mision/listar-segun-institucion", query, &missions); err != nil {
		if platform.IsNotFound(err) {
			return []models.Mission{}, nil
		}
		return nil, err
	}
	for i := range missions {
		if missions[i].InstitutionID == 0 {
			missions[i].InstitutionID = institutionID
		}
	}
	return missions, nil
}

// Update applies a partial update and returns the platform's copy when it sends one.
func (r *MissionRepository) Update(ctx context.Context, id int64, update models.MissionUpdate) (*models.Mission, error) {
	var mission models.Mission
	if err := r.client.Put(ctx, "mission.update", fmt.Sprintf("/mision/actualizar/%d", id), update, &mission); err != nil {
		return nil, err
	}
	if mission.ID == 0 {
		return nil, nil
	}
	return &mission, nil
}

// Delete removes a mission.
func (r *MissionRepository) Delete(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, "mission.delete", fmt.Sprintf("/mision/eliminar/%d", id))
}
