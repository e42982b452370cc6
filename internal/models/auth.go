package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials forwarded to the platform.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// PlatformLogin is the platform's login payload.
type PlatformLogin struct {
	Token       string          `json:"token"`
	User        PlatformUser    `json:"usuario"`
	Student     *StudentProfile `json:"alumno,omitempty"`
	Teacher     *TeacherProfile `json:"docente,omitempty"`
	Institution *Institution    `json:"institucion,omitempty"`
}

// Session is the explicit per-user context every gateway operation receives.
type Session struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"userId"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	Role          UserRole  `json:"role"`
	StudentID     *int64    `json:"studentId,omitempty"`
	TeacherID     *int64    `json:"teacherId,omitempty"`
	InstitutionID int64     `json:"institutionId,omitempty"`
	MembershipID  int64     `json:"membershipId,omitempty"`
	UpstreamToken string    `json:"upstreamToken"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Info strips the upstream credential for client responses.
func (s Session) Info() SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		UserID:        s.UserID,
		Email:         s.Email,
		DisplayName:   s.DisplayName,
		Role:          s.Role,
		StudentID:     s.StudentID,
		TeacherID:     s.TeacherID,
		InstitutionID: s.InstitutionID,
		MembershipID:  s.MembershipID,
		ExpiresAt:     s.ExpiresAt,
	}
}

// SessionInfo describes the signed-in user in responses.
type SessionInfo struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"userId"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	Role          UserRole  `json:"role"`
	StudentID     *int64    `json:"studentId,omitempty"`
	TeacherID     *int64    `json:"teacherId,omitempty"`
	InstitutionID int64     `json:"institutionId,omitempty"`
	MembershipID  int64     `json:"membershipId,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// LoginResponse returns the issued gateway token and session info.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	Session     SessionInfo `json:"session"`
}

// SessionClaims represents the JWT payload of gateway tokens.
type SessionClaims struct {
	SessionID string   `json:"sid"`
	UserID    int64    `json:"uid"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}
