package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/roombook/internal/model"
)

// PostgresBookingRepo はPostgreSQLを使用した予約リポジトリ。
// 同一会議室の時間帯の重複はbookings_no_overlap排他制約でも防止される。
type PostgresBookingRepo struct {
	db *sql.DB
}

// NewPostgresBookingRepo はPostgresBookingRepoを生成する。
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db}
}

const bookingColumns = `id, room_name, date, time, starts_at, ends_at,
	capacity, floor, amenities, booked, user_id, created_at, updated_at`

const bookingOrder = ` ORDER BY date, starts_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	b := &model.Booking{}
	var userID sql.NullString
	err := row.Scan(&b.ID, &b.RoomName, &b.Date, &b.Time, &b.StartsAt, &b.EndsAt,
		&b.Capacity, &b.Floor, pq.Array(&b.Amenities), &b.Booked, &userID,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		b.UserID = &userID.String
	}
	return b, nil
}

func (r *PostgresBookingRepo) query(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func nullableUserID(id *string) any {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return b, nil
}

// Create は予約を作成する。
func (r *PostgresBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.RoomName, b.Date, b.Time, b.StartsAt, b.EndsAt,
		b.Capacity, b.Floor, pq.Array(b.Amenities), b.Booked, nullableUserID(b.UserID),
		b.CreatedAt, b.UpdatedAt,
	)
	if isConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// Update は予約を更新する。bookedとuser_idは変更しない。
func (r *PostgresBookingRepo) Update(ctx context.Context, b *model.Booking) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET room_name = $2, date = $3, time = $4, starts_at = $5, ends_at = $6,
		   capacity = $7, floor = $8, amenities = $9, updated_at = $10
		 WHERE id = $1`,
		b.ID, b.RoomName, b.Date, b.Time, b.StartsAt, b.EndsAt,
		b.Capacity, b.Floor, pq.Array(b.Amenities), b.UpdatedAt,
	)
	if isConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
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

// DeleteByID は指定IDの予約を削除し、削除した場合はtrueを返す。
func (r *PostgresBookingRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// List は全予約を日付・開始時刻順で返す。
func (r *PostgresBookingRepo) List(ctx context.Context) ([]*model.Booking, error) {
	return r.query(ctx, `SELECT `+bookingColumns+` FROM bookings`+bookingOrder)
}

// ListBooked は booked = true の予約を全て返す。
func (r *PostgresBookingRepo) ListBooked(ctx context.Context) ([]*model.Booking, error) {
	return r.query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booked`+bookingOrder)
}

// ListByUser はユーザーの有効な予約を日付・開始時刻順で返す。
func (r *PostgresBookingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booked AND user_id = $1`+bookingOrder, userID)
}

// ListByRoom は会議室名の有効な予約を日付・開始時刻順で返す。
func (r *PostgresBookingRepo) ListByRoom(ctx context.Context, roomName string) ([]*model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booked AND room_name = $1`+bookingOrder, roomName)
}

// FindOverlapping は [start, end) と重なる同一会議室の有効な予約を返す。
func (r *PostgresBookingRepo) FindOverlapping(ctx context.Context, roomName string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE booked AND room_name = $1 AND starts_at < $3 AND $2 < ends_at
		   AND ($4 = '' OR id::text <> $4)`+bookingOrder,
		roomName, start, end, excludeID)
}

// ListUpcoming は from 以降に終了する有効な予約を開始時刻順に最大limit件返す。
func (r *PostgresBookingRepo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE booked AND ends_at > $1
		 ORDER BY starts_at LIMIT $2`, from, limit)
}

// CountActive は有効な予約数を返す。
func (r *PostgresBookingRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM bookings WHERE booked`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

// CountOnDate は指定日付の有効な予約数を返す。
func (r *PostgresBookingRepo) CountOnDate(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM bookings WHERE booked AND date = $1`, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings on date: %w", err)
	}
	return n, nil
}

// CountByRoom は会議室名ごとの有効な予約数を返す。
func (r *PostgresBookingRepo) CountByRoom(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_name, count(*) FROM bookings WHERE booked GROUP BY room_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by room: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ BookingRepository = (*PostgresBookingRepo)(nil)
