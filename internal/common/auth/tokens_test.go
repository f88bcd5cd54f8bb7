// internal/common/auth/tokens_test.go
package auth

import (
	"testing"
	"time"

	"haptic-trainer/internal/common/config"
	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestService(t *testing.T) *TokenService {
	svc, err := NewTokenService(config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "haptic-trainer",
		TokenTTL:  int(time.Hour / time.Millisecond),
	})
	require.NoError(t, err)
	return svc
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := createTestService(t)

	token, err := svc.Issue("trainee-1", "Ada Kovacs", models.RoleTrainee)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "trainee-1", token.Subject)
	assert.Equal(t, models.RoleTrainee, token.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	principal, err := svc.Verify(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "trainee-1", principal.Subject)
	assert.Equal(t, "Ada Kovacs", principal.Name)
	assert.Equal(t, models.RoleTrainee, principal.Role)
	assert.False(t, principal.CanControlSessions())
}

func TestTokenService_InstructorControlsSessions(t *testing.T) {
	svc := createTestService(t)

	token, err := svc.Issue("instructor-1", "", models.RoleInstructor)
	require.NoError(t, err)

	principal, err := svc.Verify(token.Token)
	require.NoError(t, err)
	assert.True(t, principal.CanControlSessions())
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	svc := createTestService(t)
	other, err := NewTokenService(config.AuthConfig{JWTSecret: "different-secret"})
	require.NoError(t, err)

	token, err := svc.Issue("trainee-1", "", models.RoleTrainee)
	require.NoError(t, err)

	_, err = other.Verify(token.Token)
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorCode("AUTHENTICATION_ERROR"), stdErr.Code)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc, err := NewTokenService(config.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)
	svc.ttl = -time.Minute

	token, err := svc.Issue("trainee-1", "", models.RoleTrainee)
	require.NoError(t, err)

	_, err = svc.Verify(token.Token)
	assert.Error(t, err)
}

func TestTokenService_RejectsWrongIssuer(t *testing.T) {
	minter, err := NewTokenService(config.AuthConfig{JWTSecret: "test-secret", Issuer: "somewhere-else"})
	require.NoError(t, err)
	verifier := createTestService(t)

	token, err := minter.Issue("trainee-1", "", models.RoleTrainee)
	require.NoError(t, err)

	_, err = verifier.Verify(token.Token)
	assert.Error(t, err)
}

func TestTokenService_RejectsUnknownRole(t *testing.T) {
	svc := createTestService(t)

	_, err := svc.Issue("someone", "", "superuser")
	require.Error(t, err)

	_, err = svc.Issue("", "", models.RoleTrainee)
	assert.Error(t, err, "subject is required")
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := createTestService(t)

	_, err := svc.Verify("not-a-token")
	assert.Error(t, err)
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := NewTokenService(config.AuthConfig{})
	assert.Error(t, err)
}
