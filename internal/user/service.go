// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// Service はユーザー管理のサービス層。
// プロフィール参照と管理者によるロール変更を提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Get はユーザーのプロフィールを返す。本人または管理者のみ参照できる。
func (s *Service) Get(ctx context.Context, actor model.Actor, userID string) (*model.User, error) {
	if !actor.CanAccess(userID) {
		return nil, model.NewForbiddenError()
	}
	return s.find(ctx, userID)
}

// ChangeRole はユーザーのロールを変更する。管理者のみ実行できる。
func (s *Service) ChangeRole(ctx context.Context, actor model.Actor, userID, role string) (*model.User, error) {
	if !actor.Admin {
		return nil, model.NewForbiddenError()
	}
	if !model.ValidRole(role) {
		return nil, model.NewValidationError("role must be user or admin")
	}

	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}

	slog.Info("ロールを変更しました",
		slog.String("user_id", userID),
		slog.String("from", u.Role),
		slog.String("to", role),
		slog.String("changed_by", actor.UserID),
	)

	u.Role = role
	return u, nil
}

func (s *Service) find(ctx context.Context, userID string) (*model.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewUserNotFoundError()
	}
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}
