package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/worker/sweeper"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	Book(ctx context.Context, actor model.Actor, in booking.Input) (*model.Booking, error)
	List(ctx context.Context) ([]*model.Booking, error)
	ListByUser(ctx context.Context, actor model.Actor, userID string) ([]*model.Booking, error)
	ListByRoom(ctx context.Context, roomName string) ([]model.BookingWithUser, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, actor model.Actor, id string, p booking.Patch) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
}

// Sweeper は期限切れ予約の即時削除に必要なインターフェース。
type Sweeper interface {
	Sweep(ctx context.Context) (sweeper.Result, error)
}

// BookingHandler は予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
	sweeper Sweeper
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface, sw Sweeper) *BookingHandler {
	return &BookingHandler{service: service, sweeper: sw}
}

type bookSlotRequest struct {
	RoomName  string   `json:"roomName"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Capacity  int      `json:"capacity"`
	Floor     int      `json:"floor"`
	Amenities []string `json:"amenities"`
	UserID    string   `json:"userId"`
}

// updateBookingRequest は予約の部分更新リクエスト。booked は受け付けない。
type updateBookingRequest struct {
	RoomName  *string   `json:"roomName"`
	Date      *string   `json:"date"`
	Time      *string   `json:"time"`
	Capacity  *int      `json:"capacity"`
	Floor     *int      `json:"floor"`
	Amenities *[]string `json:"amenities"`
}

type cleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
	Scanned int    `json:"scanned"`
	Skipped int    `json:"skipped"`
}

// BookSlot は予約を作成する。時間帯が重なる場合は409を返す。
// POST /booking/book-slot
func (h *BookingHandler) BookSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req bookSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.Book(r.Context(), actor, booking.Input{
		RoomName:  req.RoomName,
		Date:      req.Date,
		Time:      req.Time,
		Capacity:  req.Capacity,
		Floor:     req.Floor,
		Amenities: req.Amenities,
		UserID:    req.UserID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

// ListAll は全予約を返す。
// GET /booking/get-all-slot
func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponses(bookings))
}

// ListByUser は指定ユーザーの予約を返す。
// GET /booking/current-user-slots/{id}
func (h *BookingHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListByUser(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponses(bookings))
}

// ListByRoom は会議室の予約を予約者情報付きで返す。
// GET /booking/slots-by-room/{roomName}
func (h *BookingHandler) ListByRoom(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.ListByRoom(r.Context(), chi.URLParam(r, "roomName"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]enrichedBookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toEnrichedBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// Cleanup は期限切れ予約の削除を即時実行する。
// GET /booking/cleanup
func (h *BookingHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	msg := "Cleanup executed"
	if res.Locked {
		msg = "Cleanup skipped: another run is in progress"
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Success: true,
		Message: msg,
		Deleted: res.Deleted,
		Scanned: res.Scanned,
		Skipped: res.Skipped,
	})
}

// GetBooking は予約を1件返す。
// GET /booking/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// UpdateBooking は予約を部分更新する。
// PATCH /booking/{id}
func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req updateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), booking.Patch{
		RoomName:  req.RoomName,
		Date:      req.Date,
		Time:      req.Time,
		Capacity:  req.Capacity,
		Floor:     req.Floor,
		Amenities: req.Amenities,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// CancelBooking は予約を取り消し、取り消した予約を返す。
// DELETE /booking/{id}
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	b, err := h.service.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}
