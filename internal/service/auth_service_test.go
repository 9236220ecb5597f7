package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret", Issuer: "teamops"})

	token, expiresAt, err := svc.IssueToken("user-1", models.RoleMember, "Alex Chen", time.Hour)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, models.RoleMember, claims.Role)
	require.Equal(t, "teamops", claims.Issuer)
}

func TestAuthValidateTokenWrongSecret(t *testing.T) {
	issuer := NewAuthService(config.JWTConfig{Secret: "secret-a", Issuer: "teamops"})
	verifier := NewAuthService(config.JWTConfig{Secret: "secret-b", Issuer: "teamops"})

	token, _, err := issuer.IssueToken("user-1", models.RoleAdmin, "Alex Chen", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthValidateTokenExpired(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret", Issuer: "teamops"})

	token, _, err := svc.IssueToken("user-1", models.RoleMember, "Alex Chen", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService(config.JWTConfig{Secret: "test-secret"})

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
