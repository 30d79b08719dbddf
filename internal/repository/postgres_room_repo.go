package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/roombook/internal/model"
)

// PostgresRoomRepo はPostgreSQLを使用した会議室リポジトリ。
type PostgresRoomRepo struct {
	db *sql.DB
}

// NewPostgresRoomRepo はPostgresRoomRepoを生成する。
func NewPostgresRoomRepo(db *sql.DB) *PostgresRoomRepo {
	return &PostgresRoomRepo{db: db}
}

const roomColumns = `id, name, capacity, floor, amenities, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
	room := &model.Room{}
	err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.Floor,
		pq.Array(&room.Amenities), &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// FindByID は指定IDの会議室を取得する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room by ID: %w", err)
	}
	return room, nil
}

// FindByName は名前で会議室を検索する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByName(ctx context.Context, name string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE name = $1`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room by name: %w", err)
	}
	return room, nil
}

// List は全会議室を名前順で返す。
func (r *PostgresRoomRepo) List(ctx context.Context) ([]*model.Room, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	return rooms, nil
}

// Create は会議室を作成する。
func (r *PostgresRoomRepo) Create(ctx context.Context, room *model.Room) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		room.ID, room.Name, room.Capacity, room.Floor, pq.Array(room.Amenities), room.CreatedAt, room.UpdatedAt,
	)
	if isConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// Update は会議室情報を更新する。
func (r *PostgresRoomRepo) Update(ctx context.Context, room *model.Room) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET name = $2, capacity = $3, floor = $4, amenities = $5, updated_at = $6
		 WHERE id = $1`,
		room.ID, room.Name, room.Capacity, room.Floor, pq.Array(room.Amenities), room.UpdatedAt,
	)
	if isConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByName は名前をキーに会議室を作成または更新する。
// 作成した場合はtrueを返す。
func (r *PostgresRoomRepo) UpsertByName(ctx context.Context, room *model.Room) (bool, error) {
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE SET
		   capacity = EXCLUDED.capacity,
		   floor = EXCLUDED.floor,
		   amenities = EXCLUDED.amenities,
		   updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		room.ID, room.Name, room.Capacity, room.Floor, pq.Array(room.Amenities), room.CreatedAt, room.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert room: %w", err)
	}
	return inserted, nil
}

// DeleteByID は指定IDの会議室を削除する。
// 過去の予約は会議室名で参照しているため削除しない。
func (r *PostgresRoomRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count は会議室総数を返す。
func (r *PostgresRoomRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM rooms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ RoomRepository = (*PostgresRoomRepo)(nil)
