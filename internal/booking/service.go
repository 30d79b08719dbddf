// Package booking は会議室予約の作成・参照・更新・取消と重複判定を提供する。
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/events"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
	"github.com/hitoshi/roombook/internal/slot"
)

// Input は予約作成の入力。UserIDが空の場合は操作者の予約になる。
type Input struct {
	RoomName  string
	Date      string
	Time      string
	Capacity  int
	Floor     int
	Amenities []string
	UserID    string
}

// Patch は予約の部分更新の入力。nilのフィールドは変更しない。
type Patch struct {
	RoomName  *string
	Date      *string
	Time      *string
	Capacity  *int
	Floor     *int
	Amenities *[]string
}

// Service は予約に関するビジネスロジックを提供する。
type Service struct {
	repo      repository.BookingRepository
	users     repository.UserRepository
	sanitizer security.TextSanitizer
	events    events.Publisher
	metrics   metrics.MetricsCollector
	clock     clock.Clock
	loc       *time.Location
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithEvents は予約イベントの送信先を設定する。
func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock は現在時刻の取得元を設定する。
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation は日付・時刻ラベルを解釈するタイムゾーンを設定する。
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService はServiceを生成する。
func NewService(
	repo repository.BookingRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizer,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		users:     users,
		sanitizer: sanitizer,
		events:    events.NopPublisher{},
		metrics:   metrics.Nop{},
		clock:     clock.System{},
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book は時間帯の重複を確認して予約を作成する。
// 同じ会議室の有効な予約と時間帯が重なる場合はSLOT_CONFLICTを返す。
func (s *Service) Book(ctx context.Context, actor model.Actor, in Input) (*model.Booking, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = actor.UserID
	}
	if !actor.CanAccess(userID) {
		return nil, model.NewForbiddenError()
	}

	b, err := s.build(in.RoomName, in.Date, in.Time, in.Capacity, in.Floor, in.Amenities)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, b, ""); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b.ID = uuid.New().String()
	b.Booked = true
	if userID != "" {
		b.UserID = &userID
	}
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.RecordBookingConflict()
			return nil, model.NewSlotConflictError()
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.metrics.RecordBookingCreated()
	_ = s.events.Publish(ctx, events.NewBookingEvent(events.TypeBookingCreated, b, now))
	slog.Info("booking created",
		slog.String("booking_id", b.ID),
		slog.String("room_name", b.RoomName),
		slog.String("date", b.Date),
		slog.String("time", b.Time),
	)
	return b, nil
}

// List は全予約を返す。
func (s *Service) List(ctx context.Context) ([]*model.Booking, error) {
	bookings, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListByUser は指定ユーザーの有効な予約を返す。本人または管理者のみ参照できる。
func (s *Service) ListByUser(ctx context.Context, actor model.Actor, userID string) ([]*model.Booking, error) {
	if !actor.CanAccess(userID) {
		return nil, model.NewForbiddenError()
	}
	bookings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by user: %w", err)
	}
	return bookings, nil
}

// ListByRoom は会議室の有効な予約を予約者情報付きで返す。
// 予約者が未設定または削除済みの場合、予約者情報はnilになる。
func (s *Service) ListByRoom(ctx context.Context, roomName string) ([]model.BookingWithUser, error) {
	bookings, err := s.repo.ListByRoom(ctx, roomName)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by room: %w", err)
	}
	return s.Enrich(ctx, bookings)
}

// Enrich は予約に予約者情報を付加する。
func (s *Service) Enrich(ctx context.Context, bookings []*model.Booking) ([]model.BookingWithUser, error) {
	ids := make([]string, 0, len(bookings))
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if b.UserID == nil {
			continue
		}
		if _, ok := seen[*b.UserID]; ok {
			continue
		}
		seen[*b.UserID] = struct{}{}
		ids = append(ids, *b.UserID)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking users: %w", err)
	}

	out := make([]model.BookingWithUser, len(bookings))
	for i, b := range bookings {
		out[i] = model.BookingWithUser{Booking: b}
		if b.UserID != nil {
			out[i].User = users[*b.UserID]
		}
	}
	return out, nil
}

// Get は指定IDの予約を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewBookingNotFoundError(id)
	}
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if b == nil {
		return nil, model.NewBookingNotFoundError(id)
	}
	return b, nil
}

// Update は予約を部分更新する。予約者本人または管理者のみ更新できる。
// 会議室・日付・時刻が変わる場合は自身を除いて重複を再確認する。
func (s *Service) Update(ctx context.Context, actor model.Actor, id string, p Patch) (*model.Booking, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !current.OwnedBy(actor.UserID) {
		return nil, model.NewForbiddenError()
	}

	roomName, date, label := current.RoomName, current.Date, current.Time
	capacity, floor, amenities := current.Capacity, current.Floor, current.Amenities
	if p.RoomName != nil {
		roomName = *p.RoomName
	}
	if p.Date != nil {
		date = *p.Date
	}
	if p.Time != nil {
		label = *p.Time
	}
	if p.Capacity != nil {
		capacity = *p.Capacity
	}
	if p.Floor != nil {
		floor = *p.Floor
	}
	if p.Amenities != nil {
		amenities = *p.Amenities
	}

	b, err := s.build(roomName, date, label, capacity, floor, amenities)
	if err != nil {
		return nil, err
	}
	b.ID = current.ID
	b.Booked = current.Booked
	b.UserID = current.UserID
	b.CreatedAt = current.CreatedAt
	b.UpdatedAt = s.clock.Now()

	moved := b.RoomName != current.RoomName || !b.StartsAt.Equal(current.StartsAt) || !b.EndsAt.Equal(current.EndsAt)
	if moved && b.Booked {
		if err := s.ensureFree(ctx, b, b.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, b); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.metrics.RecordBookingConflict()
			return nil, model.NewSlotConflictError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewBookingNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	_ = s.events.Publish(ctx, events.NewBookingEvent(events.TypeBookingUpdated, b, b.UpdatedAt))
	return b, nil
}

// Cancel は予約を取り消す。予約者本人または管理者のみ取り消せる。
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !b.OwnedBy(actor.UserID) {
		return nil, model.NewForbiddenError()
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}
	if !deleted {
		return nil, model.NewBookingNotFoundError(id)
	}

	s.metrics.RecordBookingCancelled()
	_ = s.events.Publish(ctx, events.NewBookingEvent(events.TypeBookingCancelled, b, s.clock.Now()))
	slog.Info("booking cancelled",
		slog.String("booking_id", b.ID),
		slog.String("actor_id", actor.UserID),
	)
	return b, nil
}

// build は入力を検証・正規化して予約を組み立てる。
func (s *Service) build(roomName, date, label string, capacity, floor int, amenities []string) (*model.Booking, error) {
	roomName = s.sanitizer.Clean(roomName)
	if roomName == "" {
		return nil, model.NewValidationError("roomName is required")
	}
	if capacity <= 0 {
		return nil, model.NewValidationError("capacity must be greater than 0")
	}

	date = strings.TrimSpace(date)
	label = strings.TrimSpace(label)
	w, err := slot.Parse(date, label, s.loc)
	if err != nil {
		var pe *slot.ParseError
		if errors.As(err, &pe) {
			return nil, model.NewInvalidSlotError(pe.Reason)
		}
		return nil, err
	}

	return &model.Booking{
		RoomName: roomName,
		Date:     date,
		Time:     label,
		StartsAt: w.Start,
		EndsAt:   w.End,
		RoomSnapshot: model.RoomSnapshot{
			Capacity:  capacity,
			Floor:     floor,
			Amenities: s.sanitizer.CleanList(amenities),
		},
	}, nil
}

// ensureFree は同じ会議室に時間帯の重なる有効な予約がないことを確認する。
func (s *Service) ensureFree(ctx context.Context, b *model.Booking, excludeID string) error {
	clashes, err := s.repo.FindOverlapping(ctx, b.RoomName, b.StartsAt, b.EndsAt, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	if len(clashes) > 0 {
		s.metrics.RecordBookingConflict()
		slog.Info("booking rejected: slot taken",
			slog.String("room_name", b.RoomName),
			slog.String("date", b.Date),
			slog.String("time", b.Time),
			slog.String("conflicts_with", clashes[0].ID),
		)
		return model.NewSlotConflictError()
	}
	return nil
}
