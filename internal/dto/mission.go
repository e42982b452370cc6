package dto

import "github.com/noah-isme/mission-gateway/internal/models"

// EditMissionRequest updates the text of a mission under review.
type EditMissionRequest struct {
	Title       string `json:"titulo" validate:"required,max=200"`
	Description string `json:"descripcion" validate:"required,max=5000"`
}

// TransitionMissionRequest moves a mission to a target status.
type TransitionMissionRequest struct {
	Status models.MissionStatus `json:"estado" validate:"required,oneof=EN_REVISION CONVOCATORIA EN_PROGRESO FINALIZADO"`
}

// EnrollStudentRequest enrolls an institution student in a mission.
type EnrollStudentRequest struct {
	StudentMembershipID int64 `json:"idAlumnoInstitucion" validate:"required,gt=0"`
}

// MissionActionsResponse lists what the caller may do with a mission.
type MissionActionsResponse struct {
	MissionID  int64                  `json:"idMision"`
	Status     models.MissionStatus   `json:"estado"`
	NextStates []models.MissionStatus `json:"siguientesEstados"`
	Actions    []models.MissionAction `json:"acciones"`
}

// JournalQuery filters journal listings.
type JournalQuery struct {
	Entity   string `form:"entity" validate:"omitempty,oneof=MISSION ASSIGNMENT CONVERSATION SESSION"`
	EntityID string `form:"entityId" validate:"omitempty,max=64"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=500"`
}
