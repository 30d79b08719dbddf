package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/roombook/internal/model"
)

const identityColumns = `id, user_id, provider, provider_user_id, created_at`

// execer は*sql.DBと*sql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertIdentity はidentityを1件挿入する。(provider, provider_user_id)の重複はErrConflict。
func insertIdentity(ctx context.Context, db execer, identity *model.Identity) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if isConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

// PostgresIdentityRepo は外部IdPのsubjectとユーザーの対応を保持する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindBySubject はIdP名とIdP側のユーザーID(subject)で検索する。未登録ならnil。
func (r *PostgresIdentityRepo) FindBySubject(ctx context.Context, provider, subject string) (*model.Identity, error) {
	var id model.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, subject,
	).Scan(&id.ID, &id.UserID, &id.Provider, &id.ProviderUserID, &id.CreatedAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return &id, nil
}

// Create は既存ユーザーにidentityを紐付ける。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	return insertIdentity(ctx, r.db, identity)
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
