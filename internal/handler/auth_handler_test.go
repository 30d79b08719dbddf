package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
)

func newTestAuthHandler(svc *mockAuthService) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{ClientBaseURL: "http://localhost:3000"})
}

func TestAuthHandler_Register_ReturnsCreatedWithToken(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput, caller *auth.Claims) (*auth.Result, error) {
			got = in
			if caller != nil {
				t.Errorf("caller = %+v, want nil for anonymous request", caller)
			}
			return &auth.Result{Token: "new-token", User: &model.User{ID: "user-1"}}, nil
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"fullName":"Hanako Yamada","email":"hanako@example.com","password":"secret","role":"user"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["access_token"] != "new-token" {
		t.Errorf("access_token = %q, want %q", resp["access_token"], "new-token")
	}
	if got.FullName != "Hanako Yamada" || got.Email != "hanako@example.com" || got.Password != "secret" || got.Role != "user" {
		t.Errorf("input = %+v", got)
	}
}

func TestAuthHandler_Register_PassesCallerClaims(t *testing.T) {
	var callerID string
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput, caller *auth.Claims) (*auth.Result, error) {
			if caller != nil {
				callerID = caller.UserID()
			}
			return &auth.Result{Token: "t", User: &model.User{ID: "user-2"}}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"fullName":"A","email":"a@example.com","password":"p","role":"admin"}`))
	req = withActor(req, "admin-1", model.RoleAdmin)
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if callerID != "admin-1" {
		t.Errorf("caller = %q, want %q", callerID, "admin-1")
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"broken json", `{`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"duplicate email", `{"fullName":"A","email":"a@example.com","password":"p"}`,
			model.NewEmailTakenError(), http.StatusConflict, model.ErrCodeEmailTaken},
		{"validation", `{"email":"a@example.com","password":"p"}`,
			model.NewValidationError("fullName is required"), http.StatusBadRequest, model.ErrCodeValidationFailed},
		{"storage failure", `{"fullName":"A","email":"a@example.com","password":"p"}`,
			errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput, caller *auth.Claims) (*auth.Result, error) {
					return nil, tt.err
				},
			}
			h := newTestAuthHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Register(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if code := decodeErrorCode(t, w); code != tt.wantErr {
				t.Errorf("code = %q, want %q", code, tt.wantErr)
			}
		})
	}
}

func TestAuthHandler_Login_SetsCookieAndReturnsUser(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.Result, error) {
			if email != "taro@example.com" || password != "pw" {
				t.Errorf("Login(%q, %q)", email, password)
			}
			return &auth.Result{
				Token: "login-token",
				User:  &model.User{ID: "user-9", FullName: "Taro", Email: email, Role: model.RoleUser},
			}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"taro@example.com","password":"pw"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID       string `json:"id"`
			LegacyID string `json:"_id"`
			FullName string `json:"fullName"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.AccessToken != "login-token" {
		t.Errorf("access_token = %q", body.AccessToken)
	}
	if body.User.ID != "user-9" || body.User.LegacyID != "user-9" || body.User.FullName != "Taro" {
		t.Errorf("user = %+v", body.User)
	}

	cookie := findCookie(resp, middleware.AccessTokenCookieName)
	if cookie == nil {
		t.Fatal("expected access_token cookie to be set")
	}
	if cookie.Value != "login-token" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "login-token")
	}
	if !cookie.HttpOnly {
		t.Error("access_token cookie should be HttpOnly")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("cookie MaxAge = %d, want 86400", cookie.MaxAge)
	}
}

func TestAuthHandler_Login_InvalidCredentials_NoToken(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"x@example.com","password":"wrong"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if c := findCookie(resp, middleware.AccessTokenCookieName); c != nil {
		t.Error("access_token cookie should not be set on failure")
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidCredentials)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookieName, Value: "old"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	cookie := findCookie(resp, middleware.AccessTokenCookieName)
	if cookie == nil {
		t.Fatal("expected access_token cookie to be cleared")
	}
	if cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Errorf("cookie = %+v, want expired empty cookie", cookie)
	}
}

func TestAuthHandler_AzureLogin_Disabled_ReturnsNotFound(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{externalEnabled: false})

	req := httptest.NewRequest(http.MethodGet, "/auth/azure/login", nil)
	w := httptest.NewRecorder()

	h.AzureLogin(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeProviderDisabled {
		t.Errorf("code = %q, want %q", code, model.ErrCodeProviderDisabled)
	}
}

func TestAuthHandler_AzureLogin_RedirectsWithState(t *testing.T) {
	var capturedState string
	svc := &mockAuthService{
		externalEnabled: true,
		getLoginURLFn: func(state string) (string, error) {
			capturedState = state
			return "https://login.microsoftonline.com/tenant/oauth2/v2.0/authorize?state=" + state, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/auth/azure/login", nil)
	w := httptest.NewRecorder()

	h.AzureLogin(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if len(capturedState) != 32 {
		t.Errorf("state length = %d, want 32", len(capturedState))
	}
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "state="+capturedState) {
		t.Errorf("Location = %q, should contain state", loc)
	}
	cookie := findCookie(resp, oauthStateCookie)
	if cookie == nil {
		t.Fatal("expected oauth_state cookie to be set")
	}
	if cookie.Value != capturedState {
		t.Errorf("state cookie = %q, want %q", cookie.Value, capturedState)
	}
	if !cookie.HttpOnly {
		t.Error("state cookie should be HttpOnly")
	}
}

func TestAuthHandler_AzureCallback_RedirectsToClientWithToken(t *testing.T) {
	svc := &mockAuthService{
		externalEnabled: true,
		handleCallbackFn: func(ctx context.Context, code string) (*auth.Result, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return &auth.Result{Token: "azure-token", User: &model.User{ID: "u1", Role: model.RoleAdmin}}, nil
		},
	}
	h := newTestAuthHandler(svc)

	t.Run("GET query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/azure/callback?code=auth-code&state=s1", nil)
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
		w := httptest.NewRecorder()

		h.AzureCallback(w, req)
		assertAzureRedirect(t, w)
	})

	t.Run("POST form", func(t *testing.T) {
		form := url.Values{"code": {"auth-code"}, "state": {"s2"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/azure/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s2"})
		w := httptest.NewRecorder()

		h.AzureCallback(w, req)
		assertAzureRedirect(t, w)
	})
}

func assertAzureRedirect(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if loc.Host != "localhost:3000" || loc.Path != "/auth/azure-response" {
		t.Errorf("Location = %q", loc.String())
	}
	if loc.Query().Get("token") != "azure-token" || loc.Query().Get("role") != model.RoleAdmin {
		t.Errorf("query = %v", loc.Query())
	}
	if c := findCookie(resp, oauthStateCookie); c == nil || c.MaxAge >= 0 {
		t.Error("state cookie should be cleared")
	}
}

func TestAuthHandler_AzureCallback_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		target string
		cookie string
	}{
		{"state mismatch", "/auth/azure/callback?code=c&state=wrong", "right"},
		{"missing state cookie", "/auth/azure/callback?code=c&state=s", ""},
		{"missing code", "/auth/azure/callback?state=s", "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockAuthService{
				externalEnabled: true,
				handleCallbackFn: func(ctx context.Context, code string) (*auth.Result, error) {
					called = true
					return nil, errors.New("unexpected")
				},
			}
			h := newTestAuthHandler(svc)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.AzureCallback(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if called {
				t.Error("HandleCallback should not be called")
			}
		})
	}
}

func TestAuthHandler_AzureCallback_ExchangeFailure_ReturnsInternalError(t *testing.T) {
	svc := &mockAuthService{
		externalEnabled: true,
		handleCallbackFn: func(ctx context.Context, code string) (*auth.Result, error) {
			return nil, errors.New("token exchange failed")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/auth/azure/callback?code=c&state=s", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s"})
	w := httptest.NewRecorder()

	h.AzureCallback(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "token exchange failed") {
		t.Error("internal error details should not leak to the response")
	}
}
