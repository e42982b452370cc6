package models

import "strings"

// Institution is the school a membership belongs to.
type Institution struct {
	ID        int64  `json:"idInstitucion"`
	Name      string `json:"nombre,omitempty"`
	LocalCode string `json:"codigoLocal,omitempty"`
	Phone     string `json:"telefono,omitempty"`
	Address   string `json:"direccion,omitempty"`
}

// Person carries the shared profile fields of students and teachers.
type Person struct {
	FirstNames string `json:"nombres,omitempty"`
	LastNames  string `json:"apellidos,omitempty"`
	Email      string `json:"email,omitempty"`
}

// FullName joins first and last names.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstNames + " " + p.LastNames)
}

// StudentProfile is a student record.
type StudentProfile struct {
	ID int64 `json:"idAlumno"`
	Person
}

// TeacherProfile is a teacher record.
type TeacherProfile struct {
	ID int64 `json:"idDocente"`
	Person
	User *PlatformUser `json:"usuario,omitempty"`
}

// StudentMembership links a student to an institution.
type StudentMembership struct {
	ID          int64           `json:"idAlumnoInstitucion"`
	Institution Institution     `json:"institucion"`
	Student     *StudentProfile `json:"alumno,omitempty"`
}

// TeacherMembership links a teacher to an institution.
type TeacherMembership struct {
	ID          int64           `json:"idDocenteInstitucion"`
	Institution Institution     `json:"institucion"`
	Teacher     *TeacherProfile `json:"docente,omitempty"`
	Status      string          `json:"estado,omitempty"`
}
