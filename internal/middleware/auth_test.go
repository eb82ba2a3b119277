package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nexmart/nexmart-api/internal/pkg/jwt"
)

func TestAuthMiddlewareAllowsValidAccessToken(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	userID := uuid.New()
	token, err := jwtSvc.GenerateAccessToken(userID, RoleBuyer)
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	var gotUserID uuid.UUID
	var gotRole string
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotRole = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotUserID != userID {
		t.Errorf("user id in context = %s, want %s", gotUserID, userID)
	}
	if gotRole != RoleBuyer {
		t.Errorf("role in context = %s, want %s", gotRole, RoleBuyer)
	}
}

func TestAuthMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"", "Bearer garbage", "NotBearer abc"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestRequireOperator(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)

	handler := Auth(jwtSvc)(RequireOperator()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	cases := []struct {
		role string
		want int
	}{
		{RoleOperator, http.StatusOK},
		{RoleSeller, http.StatusForbidden},
		{RoleBuyer, http.StatusForbidden},
	}
	for _, tc := range cases {
		token, err := jwtSvc.GenerateAccessToken(uuid.New(), tc.role)
		if err != nil {
			t.Fatalf("token gen failed: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/ops", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("role %s: expected %d, got %d", tc.role, tc.want, w.Code)
		}
	}
}
