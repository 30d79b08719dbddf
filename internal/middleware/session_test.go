package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/model"
)

// --- ヘルパー ---

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("middleware-test-secret", time.Hour, clock.System{})
}

func issueToken(t *testing.T, issuer *auth.TokenIssuer, id, role string) string {
	t.Helper()
	token, err := issuer.Issue(&model.User{ID: id, Email: id + "@example.com", FullName: id, Role: role})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

// withClaims はテスト用に検証済みクレームを注入したリクエストを返す。
func withClaims(req *http.Request, userID, role string) *http.Request {
	claims := &auth.Claims{Role: role}
	claims.Subject = userID
	return req.WithContext(ContextWithClaims(req.Context(), claims))
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

// --- テスト ---

func TestAuthMiddleware_BearerToken_InjectsClaims(t *testing.T) {
	issuer := newTestIssuer()
	token := issueToken(t, issuer, "user-123", model.RoleUser)

	var (
		capturedUserID string
		viaCookie      bool
	)
	handler := NewAuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		viaCookie = AuthenticatedByCookie(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/room/get-all-room", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if viaCookie {
		t.Error("AuthenticatedByCookie = true for bearer token")
	}
}

func TestAuthMiddleware_CookieToken_MarksCookieAuth(t *testing.T) {
	issuer := newTestIssuer()
	token := issueToken(t, issuer, "user-cookie", model.RoleUser)

	viaCookie := false
	handler := NewAuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viaCookie = AuthenticatedByCookie(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !viaCookie {
		t.Error("AuthenticatedByCookie = false for cookie token")
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	issuer := newTestIssuer()
	other := auth.NewTokenIssuer("another-secret", time.Hour, clock.System{})
	forged := issueToken(t, other, "user-evil", model.RoleAdmin)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no token", func(r *http.Request) {}},
		{"empty cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: ""})
		}},
		{"non-bearer scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwYXNz") }},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-jwt") }},
		{"signed with another secret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := NewAuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/booking/get-all-slot", nil)
			tt.setup(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if handlerCalled {
				t.Error("handler should not have been called")
			}
			if code := decodeErrorCode(t, w); code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin passes", model.RoleAdmin, http.StatusOK},
		{"user forbidden", model.RoleUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := withClaims(httptest.NewRequest(http.MethodPost, "/room/create-room", nil), "user-1", tt.role)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireAdmin_NoClaims_Returns401(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not have been called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/overview", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestClaimsFromContext_ReturnsInjectedClaims(t *testing.T) {
	req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), "user-456", model.RoleAdmin)

	claims, err := ClaimsFromContext(req.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID() != "user-456" || !claims.IsAdmin() {
		t.Errorf("claims = %+v", claims)
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	issuer := newTestIssuer()
	valid := issueToken(t, issuer, "admin-1", model.RoleAdmin)

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"no token", "", "", ""},
		{"invalid token", "Bearer broken", "", ""},
		{"valid token", "Bearer " + valid, "", "admin-1"},
		{"cookie token is ignored", "", valid, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := NewOptionalAuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got != tt.want {
				t.Errorf("user = %q, want %q", got, tt.want)
			}
		})
	}
}
