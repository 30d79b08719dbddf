package booking

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/roombook/internal/events"
	"github.com/hitoshi/roombook/internal/model"
)

// --- mockBookingRepo ---

type mockBookingRepo struct {
	findByIDFn        func(ctx context.Context, id string) (*model.Booking, error)
	createFn          func(ctx context.Context, b *model.Booking) error
	updateFn          func(ctx context.Context, b *model.Booking) error
	deleteByIDFn      func(ctx context.Context, id string) (bool, error)
	listFn            func(ctx context.Context) ([]*model.Booking, error)
	listByUserFn      func(ctx context.Context, userID string) ([]*model.Booking, error)
	listByRoomFn      func(ctx context.Context, roomName string) ([]*model.Booking, error)
	findOverlappingFn func(ctx context.Context, roomName string, start, end time.Time, excludeID string) ([]*model.Booking, error)
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if m.createFn != nil {
		return m.createFn(ctx, b)
	}
	return nil
}

func (m *mockBookingRepo) Update(ctx context.Context, b *model.Booking) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, b)
	}
	return nil
}

func (m *mockBookingRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return true, nil
}

func (m *mockBookingRepo) List(ctx context.Context) ([]*model.Booking, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockBookingRepo) ListBooked(ctx context.Context) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBookingRepo) ListByRoom(ctx context.Context, roomName string) ([]*model.Booking, error) {
	if m.listByRoomFn != nil {
		return m.listByRoomFn(ctx, roomName)
	}
	return nil, nil
}

func (m *mockBookingRepo) FindOverlapping(ctx context.Context, roomName string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	if m.findOverlappingFn != nil {
		return m.findOverlappingFn(ctx, roomName, start, end, excludeID)
	}
	return nil, nil
}

func (m *mockBookingRepo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepo) CountActive(ctx context.Context) (int, error) { return 0, nil }

func (m *mockBookingRepo) CountOnDate(ctx context.Context, date string) (int, error) { return 0, nil }

func (m *mockBookingRepo) CountByRoom(ctx context.Context) (map[string]int, error) { return nil, nil }

// --- memBookingRepo ---

// memBookingRepo はFindOverlappingとCreateを実際に評価するインメモリ実装。
type memBookingRepo struct {
	mockBookingRepo
	mu   sync.Mutex
	rows []*model.Booking
}

func newMemBookingRepo() *memBookingRepo {
	r := &memBookingRepo{}
	r.createFn = func(_ context.Context, b *model.Booking) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		cp := *b
		r.rows = append(r.rows, &cp)
		return nil
	}
	r.findOverlappingFn = func(_ context.Context, roomName string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		var out []*model.Booking
		for _, b := range r.rows {
			if !b.Booked || b.RoomName != roomName || b.ID == excludeID {
				continue
			}
			if b.StartsAt.Before(end) && start.Before(b.EndsAt) {
				out = append(out, b)
			}
		}
		return out, nil
	}
	return r
}

// --- mockUserRepo ---

type mockUserRepo struct {
	findByIDsFn func(ctx context.Context, ids []string) (map[string]*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	if m.findByIDsFn != nil {
		return m.findByIDsFn(ctx, ids)
	}
	return map[string]*model.User{}, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id, role string) error { return nil }

func (m *mockUserRepo) Count(ctx context.Context) (int, error) { return 0, nil }

// --- recordingPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- countingMetrics ---

type countingMetrics struct {
	created, conflicts, cancelled int
}

func (m *countingMetrics) RecordBookingCreated() { m.created++ }
func (m *countingMetrics) RecordBookingConflict() { m.conflicts++ }
func (m *countingMetrics) RecordBookingCancelled() { m.cancelled++ }
func (m *countingMetrics) RecordBookingsExpired(int) {}
func (m *countingMetrics) RecordSweep(time.Duration, int) {}
func (m *countingMetrics) RecordHTTPStatus(int) {}
