package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appauth "github.com/sitecraft-ai/sitecraft-backend/internal/auth"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: "u1", Claims: map[string]interface{}{"email": "u1@example.com"}}, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", FirebaseAuthMiddleware(fakeVerifier{}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": appauth.UserFirebaseUID(c), "email": c.GetString(appauth.CtxEmail)})
	})
	return r
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing token", "", http.StatusUnauthorized, "REQUIRE_LOGIN"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "missing authorization token"},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"valid token", "Bearer good", http.StatusOK, `"uid":"u1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestDevUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", appauth.DevUser(), func(c *gin.Context) {
		c.String(http.StatusOK, appauth.UserFirebaseUID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "demo-user", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-Id", "u9")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "u9", w.Body.String())
}
