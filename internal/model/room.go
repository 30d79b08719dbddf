package model

import "time"

// Room は予約可能な会議室を表す。
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Floor     int
	Amenities []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot は予約時点の会議室情報を複製する。
func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Capacity:  r.Capacity,
		Floor:     r.Floor,
		Amenities: append([]string(nil), r.Amenities...),
	}
}
