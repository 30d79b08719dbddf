// Package room は会議室カタログの管理を提供する。
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
)

// Input は会議室の作成・更新の入力。
type Input struct {
	Name      string
	Capacity  int
	Floor     int
	Amenities []string
}

// Patch は会議室の部分更新の入力。nilのフィールドは変更しない。
type Patch struct {
	Name      *string
	Capacity  *int
	Floor     *int
	Amenities *[]string
}

// Service は会議室に関するビジネスロジックを提供する。
type Service struct {
	repo      repository.RoomRepository
	sanitizer security.TextSanitizer
	clock     clock.Clock
}

// NewService はServiceを生成する。
func NewService(repo repository.RoomRepository, sanitizer security.TextSanitizer, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, sanitizer: sanitizer, clock: clk}
}

// List は全会議室を返す。
func (s *Service) List(ctx context.Context) ([]*model.Room, error) {
	rooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// Get は指定IDの会議室を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Room, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewRoomNotFoundError(id)
	}
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	if room == nil {
		return nil, model.NewRoomNotFoundError(id)
	}
	return room, nil
}

// Create は会議室を作成する。
func (s *Service) Create(ctx context.Context, in Input) (*model.Room, error) {
	room, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	room.ID = uuid.New().String()
	room.CreatedAt = now
	room.UpdatedAt = now

	if err := s.repo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewRoomNameTakenError(room.Name)
		}
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	slog.Info("room created",
		slog.String("room_id", room.ID),
		slog.String("name", room.Name),
	)
	return room, nil
}

// Update は会議室を部分更新する。
// 既存予約は会議室名で参照しているため、改名しても過去の予約は旧名のまま残る。
func (s *Service) Update(ctx context.Context, id string, p Patch) (*model.Room, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in := Input{
		Name:      current.Name,
		Capacity:  current.Capacity,
		Floor:     current.Floor,
		Amenities: current.Amenities,
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Capacity != nil {
		in.Capacity = *p.Capacity
	}
	if p.Floor != nil {
		in.Floor = *p.Floor
	}
	if p.Amenities != nil {
		in.Amenities = *p.Amenities
	}

	room, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	room.ID = current.ID
	room.CreatedAt = current.CreatedAt
	room.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, room); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, model.NewRoomNameTakenError(room.Name)
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewRoomNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	return room, nil
}

// Delete は会議室を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewRoomNotFoundError(id)
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewRoomNotFoundError(id)
		}
		return fmt.Errorf("failed to delete room: %w", err)
	}
	slog.Info("room deleted", slog.String("room_id", id))
	return nil
}

// normalize は入力をサニタイズし検証する。
func (s *Service) normalize(in Input) (*model.Room, error) {
	name := s.sanitizer.Clean(in.Name)
	if name == "" {
		return nil, model.NewValidationError("name is required")
	}
	if in.Capacity <= 0 {
		return nil, model.NewValidationError("capacity must be greater than 0")
	}
	return &model.Room{
		Name:      name,
		Capacity:  in.Capacity,
		Floor:     in.Floor,
		Amenities: s.sanitizer.CleanList(in.Amenities),
	}, nil
}
