package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/room"
)

// RoomServiceInterface は会議室ハンドラーが必要とするサービスインターフェース。
type RoomServiceInterface interface {
	List(ctx context.Context) ([]*model.Room, error)
	Get(ctx context.Context, id string) (*model.Room, error)
	Create(ctx context.Context, in room.Input) (*model.Room, error)
	Update(ctx context.Context, id string, p room.Patch) (*model.Room, error)
	Delete(ctx context.Context, id string) error
}

// RoomHandler は会議室管理のHTTPハンドラー。
// 作成・更新・削除の管理者チェックはルーター側で行う。
type RoomHandler struct {
	service RoomServiceInterface
}

// NewRoomHandler はRoomHandlerを生成する。
func NewRoomHandler(service RoomServiceInterface) *RoomHandler {
	return &RoomHandler{service: service}
}

type createRoomRequest struct {
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Floor     int      `json:"floor"`
	Amenities []string `json:"amenities"`
}

type updateRoomRequest struct {
	Name      *string   `json:"name"`
	Capacity  *int      `json:"capacity"`
	Floor     *int      `json:"floor"`
	Amenities *[]string `json:"amenities"`
}

// ListRooms は全会議室を返す。
// GET /room/get-all-room
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]roomResponse, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, toRoomResponse(rm))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateRoom は会議室を作成する。
// POST /room/create-room
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm, err := h.service.Create(r.Context(), room.Input{
		Name:      req.Name,
		Capacity:  req.Capacity,
		Floor:     req.Floor,
		Amenities: req.Amenities,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoomResponse(rm))
}

// GetRoom は会議室を1件返す。
// GET /room/{id}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(rm))
}

// UpdateRoom は会議室を部分更新する。
// PATCH /room/{id}
func (h *RoomHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req updateRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), room.Patch{
		Name:      req.Name,
		Capacity:  req.Capacity,
		Floor:     req.Floor,
		Amenities: req.Amenities,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(rm))
}

// DeleteRoom は会議室を削除する。既存の予約は残る。
// DELETE /room/{id}
func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
