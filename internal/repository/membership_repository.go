package repository

import (
	"context"
	"net/url"
	"strconv"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
)

// MembershipRepository resolves institution memberships of students and teachers.
type MembershipRepository struct {
	client *platform.Client
}

// NewMembershipRepository constructs the repository.
func NewMembershipRepository(client *platform.Client) *MembershipRepository {
	return &MembershipRepository{client: client}
}

// StudentMembership returns the student's first institution membership, or nil when none exists.
func (r *MembershipRepository) StudentMembership(ctx context.Context, studentID int64) (*models.StudentMembership, error) {
	query := url.Values{"idAlumno": {strconv.FormatInt(studentID, 10)}}
	var memberships []models.StudentMembership
	if err := r.client.Get(ctx, "membership.student", "/alumno-institucion/listar-segun-alumno", query, &memberships); err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	return &memberships[0], nil
}

// TeacherMembership returns the teacher's first institution membership, or nil when none exists.
func (r *MembershipRepository) TeacherMembership(ctx context.Context, teacherID int64) (*models.TeacherMembership, error) {
	query := url.Values{"idDocente": {strconv.FormatInt(teacherID, 10)}}
	var memberships []models.TeacherMembership
	if err := r.client.Get(ctx, "membership.teacher", "/docente-institucion/listar-segun-docente", query, &memberships); err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	return &memberships[0], nil
}

// InstitutionStudents lists the student memberships of an institution.
func (r *MembershipRepository) InstitutionStudents(ctx context.Context, institutionID int64) ([]models.StudentMembership, error) {
	query := url.Values{"idInstitucion": {strconv.FormatInt(institutionID, 10)}}
	var memberships []models.StudentMembership
	if err := r.client.Get(ctx, "membership.institution_students", "/alumno-institucion/listar-segun-institucion", query, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// InstitutionTeachers lists the teacher memberships of an institution.
func (r *MembershipRepository) InstitutionTeachers(ctx context.Context, institutionID int64) ([]models.TeacherMembership, error) {
	query := url.Values{"idInstitucion": {strconv.FormatInt(institutionID, 10)}}
	var memberships []models.TeacherMembership
	if err := r.client.Get(ctx, "membership.institution_teachers", "/docente-institucion/listar-segun-institucion", query, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}
