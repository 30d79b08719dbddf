// Package auth はパスワード認証・外部IdP認証とアクセストークンの発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
)

// bcryptは72バイトを超えるパスワードを扱えない。
const maxPasswordBytes = 72

// ExternalProfile は外部IdPから取得したユーザー情報を表す。
type ExternalProfile struct {
	Provider string // "azure"
	Subject  string // IdP上のユーザー識別子
	Email    string
	Name     string
}

// OAuthProvider は外部IdPのインターフェース。
type OAuthProvider interface {
	// Name はprovider名を返す。
	Name() string
	// GetLoginURL は認可URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*ExternalProfile, error)
}

// RegisterInput は新規登録の入力。
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Role     string
}

// Result は認証成功時に返すトークンとユーザー。
type Result struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	identRepo repository.IdentityRepository
	tokens    *TokenIssuer
	sanitizer security.TextSanitizer
	clock     clock.Clock
}

// NewService はServiceを生成する。oauthがnilの場合は外部IdPログインを無効にする。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	tokens *TokenIssuer,
	sanitizer security.TextSanitizer,
	clk clock.Clock,
) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		identRepo: identRepo,
		tokens:    tokens,
		sanitizer: sanitizer,
		clock:     clk,
	}
}

// Register はユーザーを登録し、アクセストークンを発行する。
// 入力のRoleがadminの場合、callerが管理者でなければuserとして登録する。
func (s *Service) Register(ctx context.Context, in RegisterInput, caller *Claims) (*Result, error) {
	fullName := s.sanitizer.Clean(in.FullName)
	if fullName == "" {
		return nil, model.NewValidationError("fullName is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, model.NewValidationError("password is required")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewValidationError("password must be at most 72 bytes")
	}

	role := model.RoleUser
	if in.Role != "" && !model.ValidRole(in.Role) {
		return nil, model.NewValidationError("role must be user or admin")
	}
	if in.Role == model.RoleAdmin && caller != nil && caller.IsAdmin() {
		role = model.RoleAdmin
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return s.issue(user)
}

// Login はメールアドレスとパスワードを検証し、アクセストークンを発行する。
// 未登録のメールアドレスとパスワード誤りは同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Info("login rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// ExternalEnabled は外部IdPログインが有効かを返す。
func (s *Service) ExternalEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL は外部IdPの認可URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", model.NewProviderDisabledError(model.ProviderAzure)
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleCallback は外部IdPのコールバックを処理し、アクセストークンを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*Result, error) {
	if s.oauth == nil {
		return nil, model.NewProviderDisabledError(model.ProviderAzure)
	}
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	return s.LoginExternal(ctx, *profile)
}

// LoginExternal は外部IdPのプロフィールでログインする。
// identityが未登録の場合、同じメールアドレスのユーザーがいれば紐付け、
// いなければユーザーとidentityを同時に作成する。
func (s *Service) LoginExternal(ctx context.Context, profile ExternalProfile) (*Result, error) {
	if profile.Provider == "" || profile.Subject == "" {
		return nil, fmt.Errorf("external profile is missing provider or subject")
	}
	email, err := normalizeEmail(profile.Email)
	if err != nil {
		return nil, err
	}

	identity, err := s.identRepo.FindBySubject(ctx, profile.Provider, profile.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, model.NewUserNotFoundError()
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", profile.Provider),
		)
		return s.issue(user)
	}

	now := s.clock.Now()
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user != nil {
		link := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			Provider:       profile.Provider,
			ProviderUserID: profile.Subject,
			CreatedAt:      now,
		}
		if err := s.identRepo.Create(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		slog.Info("identity linked to existing user",
			slog.String("user_id", user.ID),
			slog.String("provider", profile.Provider),
		)
		return s.issue(user)
	}

	name := s.sanitizer.Clean(profile.Name)
	if name == "" {
		name = email
	}
	user = &model.User{
		ID:        uuid.New().String(),
		FullName:  name,
		Email:     email,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity = &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       profile.Provider,
		ProviderUserID: profile.Subject,
		CreatedAt:      now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", profile.Provider),
	)
	return s.issue(user)
}

// Verify はアクセストークンを検証する。
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// TokenTTL はアクセストークンの有効期間を返す。
func (s *Service) TokenTTL() int {
	return int(s.tokens.TTL().Seconds())
}

func (s *Service) issue(user *model.User) (*Result, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: user}, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", model.NewValidationError("email is invalid")
	}
	return strings.ToLower(addr.Address), nil
}
