// Package database はPostgreSQLへの接続とスキーマのマイグレーションを扱う。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema は前回のマイグレーションが途中で失敗したまま残っていることを示す。
// 手動で migrate force を実行してから再試行する必要がある。
var ErrDirtySchema = errors.New("database schema is dirty")

// MigrationResult はRunMigrationsの実行前後のスキーマバージョン。
type MigrationResult struct {
	From uint
	To   uint
}

// Applied は1件以上のマイグレーションが適用されたかを返す。
func (r MigrationResult) Applied() bool {
	return r.To != r.From
}

// NewMigrator は埋め込みSQLをソースにしたmigrateインスタンスを返す。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// schemaVersion は未適用(0)を含む現在のバージョンを返す。dirtyならErrDirtySchema。
func schemaVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用する。最新なら何もしない。
func RunMigrations(databaseURL string) (MigrationResult, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationResult{}, err
	}
	defer m.Close()

	from, err := schemaVersion(m)
	if err != nil {
		return MigrationResult{}, err
	}
	res := MigrationResult{From: from, To: from}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return res, fmt.Errorf("failed to run migrations: %w", err)
	}

	if res.To, err = schemaVersion(m); err != nil {
		return res, err
	}
	return res, nil
}
