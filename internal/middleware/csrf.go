package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

const (
	// csrfCookieName はフロントエンドが読み取るためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	defaultCSRFMaxAge = 24 * time.Hour
	csrfTokenBytes    = 32
)

// CSRFConfig はCSRFミドルウェアの設定。
// MaxAgeが0の場合は24時間。セッションのTOKEN_TTLに揃えて渡す。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       time.Duration
}

func (c CSRFConfig) cookie(token string) *http.Cookie {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCSRFMaxAge
	}
	return &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.CookieDomain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// issue は新しいトークンを生成してCookieに設定する。
func (c CSRFConfig) issue(w http.ResponseWriter) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	http.SetCookie(w, c.cookie(token))
	return token, nil
}

func currentCSRFToken(r *http.Request) string {
	c, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// verifyCSRF はダブルサブミットCookieとヘッダーを比較し、失敗理由を返す。
func verifyCSRF(r *http.Request) (reason string, ok bool) {
	cookieToken := currentCSRFToken(r)
	if cookieToken == "" {
		return "missing cookie token", false
	}
	headerToken := r.Header.Get(csrfHeaderName)
	if headerToken == "" {
		return "missing header token", false
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return "token mismatch", false
	}
	return "", true
}

// NewCSRFMiddleware はダブルサブミット方式のCSRF対策を行う。
// 安全なメソッドではトークンCookieを配布するだけで検証しない。
// Cookieのアクセストークンで認証された状態変更リクエストのみ検証し、
// Bearerトークンのリクエストは素通しする。NewAuthMiddlewareの後に置くこと。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if currentCSRFToken(r) == "" {
					if _, err := config.issue(w); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if AuthenticatedByCookie(r.Context()) {
				if reason, ok := verifyCSRF(r); !ok {
					slog.Warn("CSRF validation failed",
						slog.String("reason", reason),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFError())
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler は GET /auth/csrf-token を処理する。
// 既存のCookieがあればその値を、なければ新規発行した値を {"token": ...} で返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := currentCSRFToken(r)
		if token == "" {
			var err error
			if token, err = config.issue(w); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{Token: token})
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
