package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyphera/cyphera-notify/internal/auth"
	"github.com/cyphera/cyphera-notify/internal/mocks"
	"github.com/cyphera/cyphera-notify/internal/roles"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newRoleTestRouter(t *testing.T, store roles.Store) (*gin.Engine, *mocks.MockVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := roles.NewService(store, zap.NewNop())
	verifier := mocks.NewMockVerifierForTest(t)
	authenticator := auth.NewAuthenticator(verifier, service, zap.NewNop())
	handler := NewRoleHandler(service)

	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/roles/me", authenticator.RequireAuth(), handler.GetMyRole)
	admin := api.Group("/admin", authenticator.RequireAuth(), authenticator.RequireAdminRole())
	admin.PUT("/roles", handler.AssignRole)
	return router, verifier
}

func TestGetMyRole(t *testing.T) {
	store := roles.NewMemoryStore("admin@cyphera.com")
	router, verifier := newRoleTestRouter(t, store)

	tests := []struct {
		name       string
		email      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "admin",
			email:      "Admin@Cyphera.com",
			wantStatus: http.StatusOK,
			wantBody:   `{"email":"admin@cyphera.com","role":"admin"}`,
		},
		{
			name:       "no role",
			email:      "nobody@cyphera.com",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"No role assigned"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier.EXPECT().Verify(gomock.Any(), "tok").Return(auth.Identity{Email: tt.email}, nil)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/roles/me", nil)
			req.Header.Set("Authorization", "Bearer tok")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestGetMyRole_StoreFailure(t *testing.T) {
	store := mocks.NewMockRoleStoreForTest(t)
	store.EXPECT().GetRole(gomock.Any(), "ops@cyphera.com").Return("", errors.New("db down")).AnyTimes()
	router, verifier := newRoleTestRouter(t, store)
	verifier.EXPECT().Verify(gomock.Any(), "tok").Return(auth.Identity{Email: "ops@cyphera.com"}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAssignRole(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		body       string
		wantStatus int
		wantBody   string
		wantRole   string
	}{
		{
			name:       "admin assigns support",
			caller:     "admin@cyphera.com",
			body:       `{"email":" Ops@Cyphera.com ","role":"support"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"email":"ops@cyphera.com","role":"support"}`,
			wantRole:   "support",
		},
		{
			name:       "unknown role",
			caller:     "admin@cyphera.com",
			body:       `{"email":"ops@cyphera.com","role":"owner"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Role must be one of: admin, support, user"}`,
		},
		{
			name:       "missing fields",
			caller:     "admin@cyphera.com",
			body:       `{"role":"user"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid request body"}`,
		},
		{
			name:       "blank email",
			caller:     "admin@cyphera.com",
			body:       `{"email":"   ","role":"user"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Email is required"}`,
		},
		{
			name:       "non-admin caller",
			caller:     "user@cyphera.com",
			body:       `{"email":"ops@cyphera.com","role":"admin"}`,
			wantStatus: http.StatusForbidden,
			wantBody:   `{"error":"Forbidden: admin access required"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := roles.NewMemoryStore("admin@cyphera.com")
			router, verifier := newRoleTestRouter(t, store)
			verifier.EXPECT().Verify(gomock.Any(), "tok").Return(auth.Identity{Email: tt.caller}, nil)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/roles", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer tok")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())

			if tt.wantRole != "" {
				role, err := store.GetRole(context.Background(), "ops@cyphera.com")
				assert.NoError(t, err)
				assert.Equal(t, tt.wantRole, role)
			}
		})
	}
}

func TestAssignRole_MissingToken(t *testing.T) {
	router, _ := newRoleTestRouter(t, roles.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/roles", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized: missing bearer token"}`, w.Body.String())
}
