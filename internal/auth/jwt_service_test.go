package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()

	service, err := NewJWTService(JWTConfig{
		Secret: "test-secret",
		Issuer: "talentpool",
		Clock:  clock,
	})
	require.NoError(t, err)
	return service
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := newTestService(t, nil)

	token, err := service.GenerateAccessToken(AccessTokenInput{UserID: "user-1", Role: "student"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "student", claims.Role)
	require.Equal(t, "talentpool", claims.Issuer)
}

func TestGenerateAccessTokenRequiresUserID(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.GenerateAccessToken(AccessTokenInput{})
	require.Error(t, err)
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := issued

	service := newTestService(t, func() time.Time { return current })

	token, err := service.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	current = issued.Add(DefaultAccessTokenTTL + time.Minute)
	_, err = service.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	service := newTestService(t, nil)

	other, err := NewJWTService(JWTConfig{Secret: "different-secret", Issuer: "talentpool"})
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateAccessTokenRejectsWrongIssuer(t *testing.T) {
	service := newTestService(t, nil)

	other, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateAccessTokenRejectsEmptyToken(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.ValidateAccessToken("")
	require.Error(t, err)
}
