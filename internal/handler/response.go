// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20

// userResponse はユーザー情報のAPIレスポンス。
// 既存クライアント互換のため id と _id の両方を返す。
type userResponse struct {
	ID        string    `json:"id"`
	LegacyID  string    `json:"_id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// roomResponse は会議室のAPIレスポンス。
type roomResponse struct {
	ID        string    `json:"id"`
	LegacyID  string    `json:"_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Floor     int       `json:"floor"`
	Amenities []string  `json:"amenities"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// bookingResponse は予約のAPIレスポンス。
type bookingResponse struct {
	ID        string    `json:"id"`
	LegacyID  string    `json:"_id"`
	RoomName  string    `json:"roomName"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Capacity  int       `json:"capacity"`
	Floor     int       `json:"floor"`
	Amenities []string  `json:"amenities"`
	Booked    bool      `json:"booked"`
	UserID    *string   `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// bookingUserResponse は予約に付加する予約者情報。
type bookingUserResponse struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// enrichedBookingResponse は予約者情報付きの予約レスポンス。
// 予約者が不明な場合 email, personName, user は null になる。
type enrichedBookingResponse struct {
	bookingResponse
	Email      *string              `json:"email"`
	PersonName *string              `json:"personName"`
	User       *bookingUserResponse `json:"user"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		LegacyID:  u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toRoomResponse(r *model.Room) roomResponse {
	amenities := r.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return roomResponse{
		ID:        r.ID,
		LegacyID:  r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Floor:     r.Floor,
		Amenities: amenities,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toBookingResponse(b *model.Booking) bookingResponse {
	amenities := b.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return bookingResponse{
		ID:        b.ID,
		LegacyID:  b.ID,
		RoomName:  b.RoomName,
		Date:      b.Date,
		Time:      b.Time,
		StartsAt:  b.StartsAt,
		EndsAt:    b.EndsAt,
		Capacity:  b.Capacity,
		Floor:     b.Floor,
		Amenities: amenities,
		Booked:    b.Booked,
		UserID:    b.UserID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toBookingResponses(bookings []*model.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}

func toEnrichedBookingResponse(b model.BookingWithUser) enrichedBookingResponse {
	resp := enrichedBookingResponse{bookingResponse: toBookingResponse(b.Booking)}
	if b.User != nil {
		email := b.User.Email
		name := b.User.FullName
		resp.Email = &email
		resp.PersonName = &name
		resp.User = &bookingUserResponse{
			ID:       b.User.ID,
			FullName: b.User.FullName,
			Email:    b.User.Email,
		}
	}
	return resp
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み込む。
// 解釈できない場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// actorFromRequest は認証ミドルウェアが設定した操作者を返す。
// 未認証の場合は401を書き込みfalseを返す。
func actorFromRequest(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.Actor{}, false
	}
	return claims.Actor(), true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodeRoomNotFound, model.ErrCodeBookingNotFound,
		model.ErrCodeProviderDisabled:
		return http.StatusNotFound
	case model.ErrCodeSlotConflict, model.ErrCodeEmailTaken, model.ErrCodeRoomNameTaken:
		return http.StatusConflict
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest, model.ErrCodeInvalidSlot:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
