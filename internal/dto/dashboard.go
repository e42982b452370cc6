package dto

import (
	"time"

	"github.com/noah-isme/mission-gateway/internal/models"
)

// DashboardResponse is the role-specific summary returned by the dashboard endpoint.
type DashboardResponse struct {
	Role        models.UserRole       `json:"role"`
	Student     *StudentDashboard     `json:"alumno,omitempty"`
	Teacher     *TeacherDashboard     `json:"docente,omitempty"`
	Institution *InstitutionDashboard `json:"institucion,omitempty"`
	Admin       *AdminDashboard       `json:"admin,omitempty"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// StudentDashboard summarises the student's own assignments.
type StudentDashboard struct {
	InProgress int `json:"enProgreso"`
	Completed  int `json:"completadas"`
	Points     int `json:"puntos"`
}

// TeacherDashboard summarises the teacher's review queue and institution size.
type TeacherDashboard struct {
	MissionsInReview int `json:"misionesRevision"`
	TotalStudents    int `json:"totalAlumnos"`
}

// InstitutionDashboard counts the institution's people and missions.
type InstitutionDashboard struct {
	TotalStudents int `json:"totalAlumnos"`
	TotalTeachers int `json:"totalDocentes"`
	TotalMissions int `json:"totalMisiones"`
}

// AdminDashboard holds platform-wide counts.
type AdminDashboard struct {
	TotalInstitutions int64 `json:"totalInstitutions"`
	TotalUsers        int64 `json:"totalUsers"`
	TotalTeachers     int64 `json:"totalDocentes"`
	TotalStudents     int64 `json:"totalAlumnos"`
}
