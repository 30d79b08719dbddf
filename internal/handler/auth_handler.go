package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput, caller *auth.Claims) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	ExternalEnabled() bool
	GetLoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*auth.Result, error)
	TokenTTL() int
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	ClientBaseURL string // Azureログイン後のリダイレクト先
	CookieDomain  string
	CookieSecure  bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 管理者トークン付きの場合のみadminロールを付与できる
	caller, _ := middleware.ClaimsFromContext(r.Context())

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, caller)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: result.Token})
}

// Login はメールアドレスとパスワードでログインする。
// トークンはレスポンスボディとHttpOnly Cookieの両方で返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAccessTokenCookie(w, result.Token, h.service.TokenTTL())
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		User:        toUserResponse(result.User),
	})
}

// Logout はアクセストークンCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setAccessTokenCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// AzureLogin はAzure ADの認可フローを開始する。
// GET /auth/azure/login
func (h *AuthHandler) AzureLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.ExternalEnabled() {
		handleServiceError(w, model.NewProviderDisabledError(model.ProviderAzure))
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(state)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/azure",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// AzureCallback はAzure ADのコールバックを処理し、
// トークンを付けてフロントエンドにリダイレクトする。
// GET|POST /auth/azure/callback
func (h *AuthHandler) AzureCallback(w http.ResponseWriter, r *http.Request) {
	if !h.service.ExternalEnabled() {
		handleServiceError(w, model.NewProviderDisabledError(model.ProviderAzure))
		return
	}

	// response_mode=form_post の場合はボディから読む
	if err := r.ParseForm(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.Form.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("invalid state parameter"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/azure",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.Form.Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("missing authorization code"))
		return
	}

	// 3. 認証処理
	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("azure callback failed", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	// 4. フロントエンドにリダイレクト
	q := url.Values{}
	q.Set("token", result.Token)
	q.Set("role", result.User.Role)
	http.Redirect(w, r, h.config.ClientBaseURL+"/auth/azure-response?"+q.Encode(), http.StatusFound)
}

func (h *AuthHandler) setAccessTokenCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
