package models

import "encoding/json"

// AcademicLevel is one education level of an institution with the grades it runs.
type AcademicLevel struct {
	Level  string          `json:"nivel"`
	Grades []AcademicGrade `json:"grados"`
}

// AcademicGrade is a grade and the unit that holds it.
type AcademicGrade struct {
	Grade json.Number  `json:"grado"`
	Unit  AcademicUnit `json:"unidad"`
}

// AcademicUnit is the platform record behind a grade.
type AcademicUnit struct {
	ID int64 `json:"idUnidad"`
}
