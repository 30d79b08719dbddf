package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/model"
)

// DefaultTokenTTL はアクセストークンのデフォルト有効期間。
const DefaultTokenTTL = 24 * time.Hour

// Claims はアクセストークンに含めるクレーム。
// sub にユーザーIDを格納する。
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// UserID はクレームのsubjectを返す。
func (c *Claims) UserID() string {
	return c.Subject
}

// IsAdmin は管理者ロールのトークンかを返す。
func (c *Claims) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// Actor はクレームから操作者を組み立てる。
func (c *Claims) Actor() model.Actor {
	return model.Actor{UserID: c.Subject, Admin: c.IsAdmin()}
}

// TokenIssuer はHS256署名のアクセストークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenIssuer はTokenIssuerを生成する。ttlが0以下の場合はDefaultTokenTTLを使う。
func NewTokenIssuer(secret string, ttl time.Duration, clk clock.Clock) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

// TTL はトークンの有効期間を返す。
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue はユーザーのアクセストークンを発行する。
func (i *TokenIssuer) Issue(user *model.User) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		Role:  user.Role,
		Email: user.Email,
		Name:  user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify は署名・有効期限・署名方式を検証し、クレームを返す。
// 検証に失敗した場合はUNAUTHORIZEDのAPIErrorを返す。
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, model.NewUnauthorizedError()
	}
	if strings.TrimSpace(claims.Subject) == "" || !model.ValidRole(claims.Role) {
		return nil, model.NewUnauthorizedError()
	}
	return claims, nil
}
