// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// メールアドレスは小文字に正規化して比較する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByIDs は複数IDのユーザーをまとめて取得する。存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrConflictを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateRole はユーザーのロールを更新する。見つからない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, id, role string) error

	// Count はユーザー総数を返す。
	Count(ctx context.Context) (int, error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindBySubject はIdP名とIdP側のユーザーIDで検索する。見つからない場合はnilを返す。
	FindBySubject(ctx context.Context, provider, subject string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// RoomRepository は会議室データの永続化インターフェース。
type RoomRepository interface {
	// FindByID は指定IDの会議室を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Room, error)

	// FindByName は名前で会議室を検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Room, error)

	// List は全会議室を名前順で返す。
	List(ctx context.Context) ([]*model.Room, error)

	// Create は会議室を作成する。名前が重複する場合はErrConflictを返す。
	Create(ctx context.Context, room *model.Room) error

	// Update は会議室情報を更新する。
	// 見つからない場合はErrNotFound、名前が重複する場合はErrConflictを返す。
	Update(ctx context.Context, room *model.Room) error

	// UpsertByName は名前をキーに会議室を作成または更新する。
	// 作成した場合はtrueを返す。
	UpsertByName(ctx context.Context, room *model.Room) (bool, error)

	// DeleteByID は指定IDの会議室を削除する。見つからない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error

	// Count は会議室総数を返す。
	Count(ctx context.Context) (int, error)
}

// BookingRepository は予約データの永続化インターフェース。
type BookingRepository interface {
	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Booking, error)

	// Create は予約を作成する。
	// 同じ会議室の有効な予約と時間帯が重なる場合はErrConflictを返す。
	Create(ctx context.Context, booking *model.Booking) error

	// Update は予約を更新する。
	// 見つからない場合はErrNotFound、時間帯が重なる場合はErrConflictを返す。
	Update(ctx context.Context, booking *model.Booking) error

	// DeleteByID は指定IDの予約を削除し、削除した場合はtrueを返す。
	// 存在しないIDはエラーにせずfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)

	// List は全予約を日付・開始時刻順で返す。
	List(ctx context.Context) ([]*model.Booking, error)

	// ListBooked は booked = true の予約を全て返す。
	ListBooked(ctx context.Context) ([]*model.Booking, error)

	// ListByUser はユーザーの有効な予約を日付・開始時刻順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Booking, error)

	// ListByRoom は会議室名の有効な予約を日付・開始時刻順で返す。
	ListByRoom(ctx context.Context, roomName string) ([]*model.Booking, error)

	// FindOverlapping は [start, end) と重なる同一会議室の有効な予約を返す。
	// excludeIDが空でない場合はその予約を除外する。
	FindOverlapping(ctx context.Context, roomName string, start, end time.Time, excludeID string) ([]*model.Booking, error)

	// ListUpcoming は from 以降に終了する有効な予約を開始時刻順に最大limit件返す。
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*model.Booking, error)

	// CountActive は有効な予約数を返す。
	CountActive(ctx context.Context) (int, error)

	// CountOnDate は指定日付の有効な予約数を返す。
	CountOnDate(ctx context.Context, date string) (int, error)

	// CountByRoom は会議室名ごとの有効な予約数を返す。
	CountByRoom(ctx context.Context) (map[string]int, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
