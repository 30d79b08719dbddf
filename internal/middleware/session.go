// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
)

// AccessTokenCookieName はアクセストークンを保持するCookieの名前。
const AccessTokenCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	claimsContextKey     = contextKey("claims")
	cookieAuthContextKey = contextKey("cookie_auth")
)

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダー（Bearer）またはCookieから
// アクセストークンを読み取り、署名と有効期限を検証するミドルウェアを返す。
// 検証済みクレームをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := extractToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if info := requestInfoFromContext(r.Context()); info != nil {
				info.userID = claims.UserID()
			}

			ctx := ContextWithClaims(r.Context(), claims)
			ctx = context.WithValue(ctx, cookieAuthContextKey, fromCookie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware はBearerトークンがあれば検証してクレームを注入し、
// なければ、または無効であれば未認証のまま次へ渡すミドルウェアを返す。
// CSRF検証を通らないルートで使うため、Cookieのトークンは読まない。
func NewOptionalAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := extractToken(r)
			if token == "" || fromCookie {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin は管理者ロール以外のリクエストに403 Forbiddenを返すミドルウェア。
// NewAuthMiddlewareの後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := ClaimsFromContext(r.Context())
		if err != nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		if !claims.IsAdmin() {
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken はBearerトークンを優先し、なければCookieからトークンを取得する。
func extractToken(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
		return "", false
	}
	if c, err := r.Cookie(AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok || claims == nil || claims.UserID() == "" {
		return nil, fmt.Errorf("claims not found in context")
	}
	return claims, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claims.UserID(), nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// AuthenticatedByCookie はCookieのトークンで認証されたリクエストかを返す。
func AuthenticatedByCookie(ctx context.Context) bool {
	v, _ := ctx.Value(cookieAuthContextKey).(bool)
	return v
}
