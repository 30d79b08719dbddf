// Package events は予約の作成・取消・期限切れを外部に通知する。
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// イベント種別
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingUpdated   = "booking.updated"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingExpired   = "booking.expired"
)

// Event は予約に関する通知。JSONで送信する。
type Event struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"bookingId"`
	RoomName   string    `json:"roomName"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	UserID     string    `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewBookingEvent は予約からEventを組み立てる。
func NewBookingEvent(eventType string, b *model.Booking, at time.Time) Event {
	e := Event{
		Type:       eventType,
		BookingID:  b.ID,
		RoomName:   b.RoomName,
		Date:       b.Date,
		Time:       b.Time,
		OccurredAt: at.UTC(),
	}
	if b.UserID != nil {
		e.UserID = *b.UserID
	}
	return e
}

// Publisher はイベント送信のインターフェース。
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher は何も送信しないPublisher。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// loggedPublisher は送信失敗をログに記録して握りつぶすPublisher。
type loggedPublisher struct {
	next   Publisher
	logger *slog.Logger
}

// WithErrorLogging は送信失敗を呼び出し元に返さないPublisherを返す。
// 通知の失敗で予約操作を失敗させないために使う。
func WithErrorLogging(next Publisher, logger *slog.Logger) Publisher {
	if next == nil {
		next = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &loggedPublisher{next: next, logger: logger}
}

func (p *loggedPublisher) Publish(ctx context.Context, e Event) error {
	if err := p.next.Publish(ctx, e); err != nil {
		p.logger.Warn("failed to publish booking event",
			slog.String("type", e.Type),
			slog.String("booking_id", e.BookingID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
