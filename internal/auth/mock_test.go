package auth

import (
	"context"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByIDs(_ context.Context, _ []string) (map[string]*model.User, error) {
	return map[string]*model.User{}, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, _, _ string) error { return nil }

func (m *mockUserRepo) Count(_ context.Context) (int, error) { return 0, nil }

type mockIdentityRepo struct {
	findBySubjectFn func(ctx context.Context, provider, subject string) (*model.Identity, error)
	createFn        func(ctx context.Context, identity *model.Identity) error
}

func (m *mockIdentityRepo) FindBySubject(ctx context.Context, provider, subject string) (*model.Identity, error) {
	if m.findBySubjectFn != nil {
		return m.findBySubjectFn(ctx, provider, subject)
	}
	return nil, nil
}

func (m *mockIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	if m.createFn != nil {
		return m.createFn(ctx, identity)
	}
	return nil
}

type mockOAuthProvider struct {
	exchangeCodeFn func(ctx context.Context, code string) (*ExternalProfile, error)
}

func (m *mockOAuthProvider) Name() string { return model.ProviderAzure }

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	return "https://login.example.com/authorize?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*ExternalProfile, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
