package models

import "io"

// AssignmentStatus represents a student's progress on a mission.
type AssignmentStatus string

// Assignment statuses.
const (
	AssignmentStatusInProgress AssignmentStatus = "EN_PROGRESO"
	AssignmentStatusFinalized  AssignmentStatus = "FINALIZADO"
)

// Assignment links one student membership to one mission.
type Assignment struct {
	ID                  int64            `json:"idAsignacion"`
	MissionID           int64            `json:"idMision"`
	StudentMembershipID int64            `json:"idAlumnoInstitucion"`
	Status              AssignmentStatus `json:"estado"`
	Evidence            *string          `json:"evidencia,omitempty"`
	Points              *int             `json:"puntos,omitempty"`
}

// Finalized reports whether grading closed the assignment.
func (a Assignment) Finalized() bool {
	return a.Status == AssignmentStatusFinalized
}

// CreateAssignment is the platform payload registering an enrollment.
type CreateAssignment struct {
	MissionID           int64 `json:"idMision" validate:"required,gt=0"`
	StudentMembershipID int64 `json:"idAlumnoInstitucion" validate:"required,gt=0"`
}

// EnrollmentResult reports the assignment backing an enrollment and whether this call created it.
type EnrollmentResult struct {
	Assignment Assignment `json:"asignacion"`
	Created    bool       `json:"created"`
}

// EvidenceFile is an uploaded evidence attachment forwarded to the platform.
type EvidenceFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// StudentMissionStatus is the student-facing view of a mission.
type StudentMissionStatus string

// Student-facing statuses.
const (
	StudentMissionNotEnrolled StudentMissionStatus = "NO_INSCRITO"
	StudentMissionInProgress  StudentMissionStatus = "EN_PROGRESO"
	StudentMissionCompleted   StudentMissionStatus = "COMPLETADO"
)

// StudentMissionView combines a mission with the viewing student's assignment.
type StudentMissionView struct {
	Mission
	StudentStatus StudentMissionStatus `json:"estadoAlumno"`
	Progress      int                  `json:"progreso"`
	AssignmentID  *int64               `json:"idAsignacion,omitempty"`
	Points        *int                 `json:"puntos,omitempty"`
}

// StudentBoard splits the visible missions into the student's active work and open calls.
type StudentBoard struct {
	Active    []StudentMissionView `json:"active"`
	Available []StudentMissionView `json:"available"`
	Skipped   []int64              `json:"-"`
}
