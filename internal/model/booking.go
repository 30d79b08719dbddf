package model

import "time"

// RoomSnapshot は予約作成時に記録した会議室の属性。
// 以後会議室側が変更されても再読込しない。
type RoomSnapshot struct {
	Capacity  int
	Floor     int
	Amenities []string
}

// Booking は会議室の時間帯予約を表す。
// StartsAt/EndsAt は Date と Time から正規化した半開区間 [StartsAt, EndsAt)。
type Booking struct {
	ID       string
	RoomName string
	Date     string
	Time     string
	StartsAt time.Time
	EndsAt   time.Time
	RoomSnapshot
	Booked    bool
	UserID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy は予約が指定ユーザーのものかを返す。
func (b *Booking) OwnedBy(userID string) bool {
	return b.UserID != nil && *b.UserID == userID
}

// BookingWithUser は予約者情報を付加した予約。
// 予約者が未設定または削除済みの場合 User は nil。
type BookingWithUser struct {
	*Booking
	User *User
}
