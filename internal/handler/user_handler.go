package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/model"
)

// UserServiceInterface はユーザー参照・ロール変更に必要なサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, actor model.Actor, userID string) (*model.User, error)
	ChangeRole(ctx context.Context, actor model.Actor, userID, role string) (*model.User, error)
}

// UserHandler はユーザー参照・ロール変更のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), actor, actor.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// GetUser は指定ユーザーの情報を返す。本人または管理者のみ参照できる。
// GET /auth/me/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ChangeRole はユーザーのロールを変更する。
// PATCH /auth/users/{id}/role
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
