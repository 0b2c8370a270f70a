package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/TalentPoolPicos/talentpool-backend/internal/auth"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "middleware-secret", Issuer: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", Auth(jwtService), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"role":    c.GetString(CtxRoleKey),
		})
	})
	r.GET("/admin", Auth(jwtService), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r, jwtService
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthPropagatesIdentity(t *testing.T) {
	r, jwtService := newAuthTestRouter(t)

	token, err := jwtService.GenerateAccessToken(iauth.AccessTokenInput{UserID: "user-1", Role: "student"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "user-1")
	require.Contains(t, rec.Body.String(), "student")
}

func TestAuthAcceptsQueryTokenFallback(t *testing.T) {
	r, jwtService := newAuthTestRouter(t)

	token, err := jwtService.GenerateAccessToken(iauth.AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	r, jwtService := newAuthTestRouter(t)

	student, err := jwtService.GenerateAccessToken(iauth.AccessTokenInput{UserID: "user-1", Role: "student"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+student)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin, err := jwtService.GenerateAccessToken(iauth.AccessTokenInput{UserID: "admin-1", Role: "admin"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
