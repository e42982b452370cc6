package models

import "strings"

// UserRole represents the platform roles recognised by the gateway.
type UserRole string

const (
	RoleStudent     UserRole = "ALUMNO"
	RoleTeacher     UserRole = "DOCENTE"
	RoleInstitution UserRole = "INSTITUCION"
	RoleAdmin       UserRole = "ADMIN"
)

// ParseRole normalises a platform role name. Unknown names yield false.
func ParseRole(name string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(name)))
	switch role {
	case RoleStudent, RoleTeacher, RoleInstitution, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// PlatformRole is the nested role object of a platform user.
type PlatformRole struct {
	Name string `json:"nombre"`
}

// PlatformUser is the account record returned on platform login.
type PlatformUser struct {
	ID    int64        `json:"idUsuario"`
	Email string       `json:"email"`
	Code  string       `json:"codigo"`
	Name  string       `json:"nombre,omitempty"`
	Phone string       `json:"telefono,omitempty"`
	Role  PlatformRole `json:"rol"`
}
