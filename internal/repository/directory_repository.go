package repository

import (
	"context"
	"net/url"
	"strconv"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
)

// DirectoryRepository reads institutions, user accounts and academic structure from the platform.
type DirectoryRepository struct {
	client *platform.Client
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(client *platform.Client) *DirectoryRepository {
	return &DirectoryRepository{client: client}
}

// Institutions lists every institution on the platform.
func (r *DirectoryRepository) Institutions(ctx context.Context) ([]models.Institution, error) {
	var institutions []models.Institution
	if err := r.client.Get(ctx, "directory.institutions", "/institucion/listar", nil, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

// Users lists every platform account.
func (r *DirectoryRepository) Users(ctx context.Context) ([]models.PlatformUser, error) {
	var users []models.PlatformUser
	if err := r.client.Get(ctx, "directory.users", "/usuario/listar", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AcademicStructure returns an institution's levels and grades.
func (r *DirectoryRepository) AcademicStructure(ctx context.Context, institutionID int64) ([]models.AcademicLevel, error) {
	query := url.Values{"idInstitucion": {strconv.FormatInt(institutionID, 10)}}
	var levels []models.AcademicLevel
	if err := r.client.Get(ctx, "directory.academic_structure", "/unidad/buscar-unidades-completa", query, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}
