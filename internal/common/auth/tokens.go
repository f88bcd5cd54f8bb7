// internal/common/auth/tokens.go
package auth

import (
	"fmt"
	"time"

	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTokenTTL = time.Hour

// Claims carries the principal fields alongside the registered set.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the HS256 bearer tokens used by the REST
// API and the telemetry gateway.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth: jwt_secret is required")
	}

	ttl := time.Duration(cfg.TokenTTL) * time.Millisecond
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &TokenService{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
	}, nil
}

// ValidRole reports whether role is one the API recognizes.
func ValidRole(role string) bool {
	switch role {
	case models.RoleTrainee, models.RoleInstructor, models.RoleService:
		return true
	}
	return false
}

// Issue mints a token for the given subject.
func (s *TokenService) Issue(subject, name, role string) (*models.AuthToken, error) {
	if subject == "" {
		return nil, errors.NewInputValidationFailedError("subject is required")
	}
	if !ValidRole(role) {
		return nil, errors.NewInputValidationFailedError(fmt.Sprintf("unknown role %q", role))
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.AuthToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		Subject:   subject,
		Role:      role,
	}, nil
}

// Verify parses a bearer token and returns the principal it identifies.
func (s *TokenService) Verify(tokenString string) (*models.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.NewAuthenticationError(err.Error())
	}
	if !token.Valid {
		return nil, errors.NewAuthenticationError("token is not valid")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("unexpected issuer %q", claims.Issuer))
	}
	if !ValidRole(claims.Role) {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("unknown role %q", claims.Role))
	}

	return &models.Principal{
		Subject: claims.Subject,
		Name:    claims.Name,
		Role:    claims.Role,
	}, nil
}
