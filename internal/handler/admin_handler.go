package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roombook/internal/admin"
	"github.com/hitoshi/roombook/internal/clock"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminServiceInterface は管理画面ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	Overview(ctx context.Context) (*admin.Overview, error)
	ExportBookings(ctx context.Context, w io.Writer) error
}

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	service AdminServiceInterface
	clock   clock.Clock
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, clk clock.Clock) *AdminHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &AdminHandler{service: service, clock: clk}
}

type totalsResponse struct {
	Users          int `json:"users"`
	Rooms          int `json:"rooms"`
	ActiveBookings int `json:"activeBookings"`
	BookingsToday  int `json:"bookingsToday"`
}

type roomCountResponse struct {
	RoomName string `json:"roomName"`
	Bookings int    `json:"bookings"`
}

type overviewResponse struct {
	Totals   totalsResponse      `json:"totals"`
	ByRoom   []roomCountResponse `json:"byRoom"`
	Upcoming []bookingResponse   `json:"upcoming"`
}

// Overview は管理画面の集計値を返す。
// GET /admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.service.Overview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := overviewResponse{
		Totals: totalsResponse{
			Users:          ov.Totals.Users,
			Rooms:          ov.Totals.Rooms,
			ActiveBookings: ov.Totals.ActiveBookings,
			BookingsToday:  ov.Totals.BookingsToday,
		},
		ByRoom:   make([]roomCountResponse, 0, len(ov.ByRoom)),
		Upcoming: toBookingResponses(ov.Upcoming),
	}
	for _, rc := range ov.ByRoom {
		resp.ByRoom = append(resp.ByRoom, roomCountResponse{RoomName: rc.RoomName, Bookings: rc.Bookings})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportBookings は全予約をxlsxでダウンロードさせる。
// 生成に失敗した場合に500を返せるよう、一度メモリ上に書き出してから送信する。
// GET /admin/bookings/export
func (h *AdminHandler) ExportBookings(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportBookings(r.Context(), &buf); err != nil {
		handleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("bookings-%s.xlsx", h.clock.Now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write export", slog.String("error", err.Error()))
	}
}
