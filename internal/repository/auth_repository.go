package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

// AuthRepository forwards credentials to the platform and reads its counters.
type AuthRepository struct {
	client *platform.Client
}

// NewAuthRepository constructs the repository.
func NewAuthRepository(client *platform.Client) *AuthRepository {
	return &AuthRepository{client: client}
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a platform token and profile.
func (r *AuthRepository) Login(ctx context.Context, email, password string) (*models.PlatformLogin, error) {
	var login models.PlatformLogin
	err := r.client.Post(ctx, "auth.login", "/auth/login", loginPayload{Email: email, Password: password}, &login)
	if err != nil {
		if errors.Is(err, appErrors.ErrUnauthorized) || errors.Is(err, appErrors.ErrValidation) || errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, appErrors.ErrInvalidCredentials.Message)
		}
		return nil, err
	}
	if login.Token == "" || login.User.ID == 0 {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "platform login returned no session")
	}
	return &login, nil
}

// Countable names the platform resources exposing a /contar endpoint.
type Countable string

// Countable resources.
const (
	CountInstitutions Countable = "institucion"
	CountUsers        Countable = "usuario"
	CountTeachers     Countable = "docente"
	CountStudents     Countable = "alumno"
)

// Count returns the platform-wide total of a resource. A missing payload counts as zero.
func (r *AuthRepository) Count(ctx context.Context, resource Countable) (int64, error) {
	var total int64
	if err := r.client.Get(ctx, "count."+string(resource), fmt.Sprintf("/%s/contar", resource), nil, &total); err != nil {
		return 0, err
	}
	return total, nil
}
