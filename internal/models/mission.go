package models

// MissionStatus represents the lifecycle stage of a mission.
type MissionStatus string

// Mission lifecycle statuses.
const (
	MissionStatusInReview   MissionStatus = "EN_REVISION"
	MissionStatusOpen       MissionStatus = "CONVOCATORIA"
	MissionStatusInProgress MissionStatus = "EN_PROGRESO"
	MissionStatusFinalized  MissionStatus = "FINALIZADO"
)

// MissionStatuses lists every status in lifecycle order.
var MissionStatuses = []MissionStatus{
	MissionStatusInReview,
	MissionStatusOpen,
	MissionStatusInProgress,
	MissionStatusFinalized,
}

// Valid reports whether s is a known status.
func (s MissionStatus) Valid() bool {
	for _, status := range MissionStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// MissionAction names an operation a user may perform on a mission.
type MissionAction string

// Mission actions.
const (
	MissionActionApprove MissionAction = "APPROVE"
	MissionActionEdit    MissionAction = "EDIT"
	MissionActionDiscard MissionAction = "DISCARD"
	MissionActionStart   MissionAction = "START"
	MissionActionClose   MissionAction = "CLOSE"
	MissionActionEnroll  MissionAction = "ENROLL"
)

// Mission is an assignable unit of learning work owned by an institution.
type Mission struct {
	ID            int64         `json:"idMision"`
	InstitutionID int64         `json:"idInstitucion"`
	Title         string        `json:"titulo"`
	Description   string        `json:"descripcion"`
	Status        MissionStatus `json:"estado"`
	StartDate     *Timestamp    `json:"fechaInicio,omitempty"`
	EndDate       *Timestamp    `json:"fechaFin,omitempty"`
	CreatedAt     *Timestamp    `json:"createdAt,omitempty"`
}

// MissionUpdate is the partial document sent to the platform on update.
type MissionUpdate struct {
	Title       *string        `json:"titulo,omitempty"`
	Description *string        `json:"descripcion,omitempty"`
	Status      *MissionStatus `json:"estado,omitempty"`
}

// ManagedMission decorates a mission with the actions available to the viewer.
type ManagedMission struct {
	Mission
	Actions []MissionAction `json:"acciones"`
}

// ManagementView is the teacher's working set: reviewable, open and running missions plus the institution's students.
type ManagementView struct {
	InstitutionID int64               `json:"idInstitucion"`
	Missions      []ManagedMission    `json:"misiones"`
	Students      []StudentMembership `json:"alumnos"`
}

// RosterRow is one exported line of the management view.
type RosterRow struct {
	MissionID int64         `json:"idMision"`
	Title     string        `json:"titulo"`
	Status    MissionStatus `json:"estado"`
	Enrolled  *int          `json:"inscritos,omitempty"`
}
