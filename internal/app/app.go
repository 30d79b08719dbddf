package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/roombook/internal/admin"
	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/config"
	"github.com/hitoshi/roombook/internal/database"
	"github.com/hitoshi/roombook/internal/events"
	"github.com/hitoshi/roombook/internal/handler"
	"github.com/hitoshi/roombook/internal/lock"
	"github.com/hitoshi/roombook/internal/logger"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/room"
	"github.com/hitoshi/roombook/internal/security"
	"github.com/hitoshi/roombook/internal/user"
	"github.com/hitoshi/roombook/internal/worker/sweeper"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("timezone", cfg.BookingLocation.String()),
		slog.Bool("azure_enabled", cfg.AzureEnabled()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// dbConnectTimeout は起動時のDB疎通確認の上限。
const dbConnectTimeout = 10 * time.Second

// openDB は設定のプールサイズでDBに接続する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbConnectTimeout)
	defer cancel()

	return database.Connect(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
}

// newLocker はREDIS_URLが設定されていればRedisによる分散ロックを返す。
// 未設定の場合は単一インスタンス前提のNopLockerを返す。
func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NopLocker{}, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")
	return lock.NewRedisLocker(client), func() { client.Close() }, nil
}

// newPublisher はAMQP_URLが設定されていればRabbitMQへ予約イベントを発行するPublisherを返す。
// 発行エラーはログに記録するのみで、呼び出し元の処理は失敗させない。
func newPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, func() {}, nil
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.BookingEventsQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}

	slog.Info("amqp publisher ready", slog.String("queue", cfg.BookingEventsQueue))
	closeFn := func() {
		if err := pub.Close(); err != nil {
			slog.Warn("failed to close amqp publisher", slog.String("error", err.Error()))
		}
	}
	return events.WithErrorLogging(pub, slog.Default()), closeFn, nil
}

// newRegistry はGo/プロセスの標準メトリクスを含むレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newSweeper は期限切れ予約スイーパーを構築する。
func newSweeper(
	cfg *config.Config,
	repo repository.BookingRepository,
	locker lock.Locker,
	pub events.Publisher,
	m metrics.MetricsCollector,
) *sweeper.Sweeper {
	sw := sweeper.NewSweeper(repo, slog.Default(),
		sweeper.WithLocker(locker),
		sweeper.WithEvents(pub),
		sweeper.WithMetrics(m),
		sweeper.WithLocation(cfg.BookingLocation),
	)
	sw.LockTTL = cfg.SweepLockTTL
	return sw
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. 外部連携（Redis / RabbitMQ）
	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	roomRepo := repository.NewPostgresRoomRepo(db)
	bookingRepo := repository.NewPostgresBookingRepo(db)

	// 4. 共通コンポーネント
	clk := clock.System{}
	sanitizer := security.NewTextSanitizer()
	reg := newRegistry()
	collector := metrics.NewCollector(reg)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, clk)

	// 5. ドメインサービスの初期化
	var oauthProvider auth.OAuthProvider
	if cfg.AzureEnabled() {
		oauthProvider = auth.NewAzureProvider(auth.AzureConfig{
			TenantID:     cfg.AzureTenantID,
			ClientID:     cfg.AzureClientID,
			ClientSecret: cfg.AzureClientSecret,
			RedirectURL:  cfg.AzureRedirectURL,
		})
	}
	authService := auth.NewService(oauthProvider, userRepo, identRepo, tokens, sanitizer, clk)
	userService := user.NewService(userRepo)
	roomService := room.NewService(roomRepo, sanitizer, clk)
	bookingService := booking.NewService(bookingRepo, userRepo, sanitizer,
		booking.WithEvents(publisher),
		booking.WithMetrics(collector),
		booking.WithClock(clk),
		booking.WithLocation(cfg.BookingLocation),
	)
	adminService := admin.NewService(userRepo, roomRepo, bookingRepo, clk, cfg.BookingLocation)
	sw := newSweeper(cfg, bookingRepo, locker, publisher, collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Verifier:          tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.TokenTTL,
		},
		RateLimiter:    rateLimiter,
		Logger:         slog.Default(),
		HTTPMetrics:    collector,
		MetricsHandler: metrics.Handler(reg),
		DB:             db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			ClientBaseURL: cfg.ClientBaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
		},
		UserService: userService,

		RoomService:    roomService,
		BookingService: bookingService,
		Sweeper:        sw,

		AdminService: adminService,
		Clock:        clk,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れ予約のスイーパーを定期実行する。
// 複数インスタンスで起動する場合はREDIS_URLを設定してロックを共有する。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	// ワーカーのメトリクスは公開しないため専用レジストリに登録するのみ
	collector := metrics.NewCollector(prometheus.NewRegistry())
	sw := newSweeper(cfg, repository.NewPostgresBookingRepo(db), locker, publisher, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Duration("lock_ttl", cfg.SweepLockTTL),
	)

	// スイーパーをメインgoroutineで実行（ブロッキング）
	sw.Start(ctx, cfg.SweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	res, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("from_version", uint64(res.From)),
		slog.Uint64("to_version", uint64(res.To)),
		slog.Bool("applied", res.Applied()),
	)
	return nil
}

// runSeed はROOMS_SEED_FILEの会議室定義をDBに反映する。
// 同名の会議室は更新し、存在しないものは作成する。
func runSeed(cfg *config.Config) error {
	file, err := room.LoadSeedFile(cfg.RoomsSeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := room.NewService(repository.NewPostgresRoomRepo(db), security.NewTextSanitizer(), clock.System{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := svc.Seed(ctx, file)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("rooms seeded",
		slog.String("file", cfg.RoomsSeedFile),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
