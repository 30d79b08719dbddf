package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/roombook/internal/admin"
	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/room"
	"github.com/hitoshi/roombook/internal/worker/sweeper"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, in auth.RegisterInput, caller *auth.Claims) (*auth.Result, error)
	loginFn          func(ctx context.Context, email, password string) (*auth.Result, error)
	externalEnabled  bool
	getLoginURLFn    func(state string) (string, error)
	handleCallbackFn func(ctx context.Context, code string) (*auth.Result, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput, caller *auth.Claims) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in, caller)
	}
	return &auth.Result{Token: "token", User: &model.User{ID: "user-1", Role: model.RoleUser}}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) ExternalEnabled() bool { return m.externalEnabled }

func (m *mockAuthService) GetLoginURL(state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "", model.NewProviderDisabledError(model.ProviderAzure)
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.Result, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, model.NewProviderDisabledError(model.ProviderAzure)
}

func (m *mockAuthService) TokenTTL() int { return 86400 }

type mockUserService struct {
	getFn        func(ctx context.Context, actor model.Actor, userID string) (*model.User, error)
	changeRoleFn func(ctx context.Context, actor model.Actor, userID, role string) (*model.User, error)
}

func (m *mockUserService) Get(ctx context.Context, actor model.Actor, userID string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) ChangeRole(ctx context.Context, actor model.Actor, userID, role string) (*model.User, error) {
	if m.changeRoleFn != nil {
		return m.changeRoleFn(ctx, actor, userID, role)
	}
	return nil, model.NewUserNotFoundError()
}

type mockRoomService struct {
	listFn   func(ctx context.Context) ([]*model.Room, error)
	getFn    func(ctx context.Context, id string) (*model.Room, error)
	createFn func(ctx context.Context, in room.Input) (*model.Room, error)
	updateFn func(ctx context.Context, id string, p room.Patch) (*model.Room, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockRoomService) List(ctx context.Context) ([]*model.Room, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRoomService) Get(ctx context.Context, id string) (*model.Room, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewRoomNotFoundError(id)
}

func (m *mockRoomService) Create(ctx context.Context, in room.Input) (*model.Room, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Room{ID: "room-1", Name: in.Name, Capacity: in.Capacity, Floor: in.Floor, Amenities: in.Amenities}, nil
}

func (m *mockRoomService) Update(ctx context.Context, id string, p room.Patch) (*model.Room, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, p)
	}
	return nil, model.NewRoomNotFoundError(id)
}

func (m *mockRoomService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockBookingService struct {
	bookFn       func(ctx context.Context, actor model.Actor, in booking.Input) (*model.Booking, error)
	listFn       func(ctx context.Context) ([]*model.Booking, error)
	listByUserFn func(ctx context.Context, actor model.Actor, userID string) ([]*model.Booking, error)
	listByRoomFn func(ctx context.Context, roomName string) ([]model.BookingWithUser, error)
	getFn        func(ctx context.Context, id string) (*model.Booking, error)
	updateFn     func(ctx context.Context, actor model.Actor, id string, p booking.Patch) (*model.Booking, error)
	cancelFn     func(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
}

func (m *mockBookingService) Book(ctx context.Context, actor model.Actor, in booking.Input) (*model.Booking, error) {
	if m.bookFn != nil {
		return m.bookFn(ctx, actor, in)
	}
	return &model.Booking{ID: "booking-1", RoomName: in.RoomName, Date: in.Date, Time: in.Time, Booked: true}, nil
}

func (m *mockBookingService) List(ctx context.Context) ([]*model.Booking, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockBookingService) ListByUser(ctx context.Context, actor model.Actor, userID string) ([]*model.Booking, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, actor, userID)
	}
	return nil, nil
}

func (m *mockBookingService) ListByRoom(ctx context.Context, roomName string) ([]model.BookingWithUser, error) {
	if m.listByRoomFn != nil {
		return m.listByRoomFn(ctx, roomName)
	}
	return nil, nil
}

func (m *mockBookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewBookingNotFoundError(id)
}

func (m *mockBookingService) Update(ctx context.Context, actor model.Actor, id string, p booking.Patch) (*model.Booking, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, p)
	}
	return nil, model.NewBookingNotFoundError(id)
}

func (m *mockBookingService) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, actor, id)
	}
	return nil, model.NewBookingNotFoundError(id)
}

type mockSweeper struct {
	result sweeper.Result
	err    error
	calls  int
}

func (m *mockSweeper) Sweep(ctx context.Context) (sweeper.Result, error) {
	m.calls++
	return m.result, m.err
}

type mockAdminService struct {
	overviewFn func(ctx context.Context) (*admin.Overview, error)
	exportFn   func(ctx context.Context, w io.Writer) error
}

func (m *mockAdminService) Overview(ctx context.Context) (*admin.Overview, error) {
	if m.overviewFn != nil {
		return m.overviewFn(ctx)
	}
	return &admin.Overview{}, nil
}

func (m *mockAdminService) ExportBookings(ctx context.Context, w io.Writer) error {
	if m.exportFn != nil {
		return m.exportFn(ctx, w)
	}
	return nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

// --- ヘルパー ---

// withActor は認証ミドルウェアを通過した状態のリクエストを返す。
func withActor(req *http.Request, userID, role string) *http.Request {
	claims := &auth.Claims{Role: role}
	claims.Subject = userID
	return req.WithContext(middleware.ContextWithClaims(req.Context(), claims))
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
