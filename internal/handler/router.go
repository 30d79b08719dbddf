package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	CORSAllowedOrigin string // カンマ区切りで複数指定可
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPStatusRecorder // nilの場合は記録しない
	MetricsHandler    http.Handler                  // nilの場合は /metrics を公開しない
	DB                HealthChecker

	// 認証・ユーザー
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	UserService UserServiceInterface

	// 会議室・予約
	RoomService    RoomServiceInterface
	BookingService BookingServiceInterface
	Sweeper        Sweeper

	// 管理画面
	AdminService AdminServiceInterface
	Clock        clock.Clock
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  認証が必要なルート: Auth → RateLimit(General) → CSRF [→ RequireAdmin]
//
// /auth/login と /auth/register にはIP単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	roomHandler := NewRoomHandler(deps.RoomService)
	bookingHandler := NewBookingHandler(deps.BookingService, deps.Sweeper)
	adminHandler := NewAdminHandler(deps.AdminService, deps.Clock)

	requireAuth := middleware.NewAuthMiddleware(deps.Verifier)

	// --- 認証不要のルート ---
	r.Get("/health", Health(deps.DB))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.With(middleware.NewOptionalAuthMiddleware(deps.Verifier)).Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.Post("/logout", authHandler.Logout)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// Azure ADのOIDCフロー
		r.Get("/azure/login", authHandler.AzureLogin)
		r.Get("/azure/callback", authHandler.AzureCallback)
		r.Post("/azure/callback", authHandler.AzureCallback)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Get("/me", userHandler.Me)
			r.Get("/me/{id}", userHandler.GetUser)
			r.With(middleware.RequireAdmin).Patch("/users/{id}/role", userHandler.ChangeRole)
		})
	})

	// ミドルウェアスタック: Auth → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// 会議室
		r.Route("/room", func(r chi.Router) {
			r.Get("/get-all-room", roomHandler.ListRooms)
			r.With(middleware.RequireAdmin).Post("/create-room", roomHandler.CreateRoom)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", roomHandler.GetRoom)
				r.With(middleware.RequireAdmin).Patch("/", roomHandler.UpdateRoom)
				r.With(middleware.RequireAdmin).Delete("/", roomHandler.DeleteRoom)
			})
		})

		// 予約
		r.Route("/booking", func(r chi.Router) {
			r.Post("/book-slot", bookingHandler.BookSlot)
			r.Get("/get-all-slot", bookingHandler.ListAll)
			r.Get("/current-user-slots/{id}", bookingHandler.ListByUser)
			r.Get("/slots-by-room/{roomName}", bookingHandler.ListByRoom)
			// 静的パスは /{id} より優先される
			r.With(middleware.RequireAdmin).Get("/cleanup", bookingHandler.Cleanup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookingHandler.GetBooking)
				r.Patch("/", bookingHandler.UpdateBooking)
				r.Delete("/", bookingHandler.CancelBooking)
			})
		})

		// 管理画面
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/overview", adminHandler.Overview)
			r.Get("/bookings/export", adminHandler.ExportBookings)
		})
	})

	return r
}
