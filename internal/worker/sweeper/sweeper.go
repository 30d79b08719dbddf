// Package sweeper は終了時刻を過ぎた予約の自動削除ジョブを提供する。
// 予約の日付と時刻ラベルを再解釈し、現在時刻が終了時刻を過ぎたものを削除する。
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/events"
	"github.com/hitoshi/roombook/internal/lock"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/slot"
)

// LockKey は複数インスタンス間でスイープを排他するロックのキー。
const LockKey = "sweeper"

// DefaultLockTTL はロックの既定の有効期間。
const DefaultLockTTL = 30 * time.Second

// Result は1回のスイープの結果。
type Result struct {
	Scanned  int
	Deleted  int
	Skipped  int
	Duration time.Duration
	// Locked は別インスタンスがロックを保持していたため実行しなかったことを表す。
	Locked bool
}

// Sweeper は期限切れ予約の削除ジョブ。
// 削除済みの予約を再度削除してもエラーにならないため、重複実行しても安全。
type Sweeper struct {
	repo    repository.BookingRepository
	logger  *slog.Logger
	locker  lock.Locker
	events  events.Publisher
	metrics metrics.MetricsCollector
	clock   clock.Clock
	loc     *time.Location
	LockTTL time.Duration // ロックの有効期間（デフォルト: 30秒）
}

// Option はSweeperの任意設定。
type Option func(*Sweeper)

// WithLocker は実行ロックを設定する。
func WithLocker(l lock.Locker) Option {
	return func(s *Sweeper) { s.locker = l }
}

// WithEvents は期限切れイベントの送信先を設定する。
func WithEvents(p events.Publisher) Option {
	return func(s *Sweeper) { s.events = p }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithClock は現在時刻の取得元を設定する。
func WithClock(c clock.Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

// WithLocation は日付・時刻ラベルを解釈するタイムゾーンを設定する。
func WithLocation(loc *time.Location) Option {
	return func(s *Sweeper) { s.loc = loc }
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(repo repository.BookingRepository, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		repo:    repo,
		logger:  logger,
		locker:  lock.NopLocker{},
		events:  events.NopPublisher{},
		metrics: metrics.Nop{},
		clock:   clock.System{},
		loc:     time.Local,
		LockTTL: DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start はintervalごとにスイープを実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("予約スイーパーを開始しました",
		slog.Duration("interval", interval),
	)

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("予約スイーパーを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("予約スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Sweep は booked = true の予約を走査し、終了時刻を過ぎたものを削除する。
// 日付や時刻を解釈できない予約は警告を記録して読み飛ばす。
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	start := time.Now()

	release, ok, err := s.locker.TryLock(ctx, LockKey, s.LockTTL)
	if err != nil {
		return Result{}, fmt.Errorf("スイープロックの取得に失敗: %w", err)
	}
	if !ok {
		s.logger.Info("別のインスタンスがスイープ中のためスキップしました")
		return Result{Locked: true}, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("スイープロックの解放に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}()

	bookings, err := s.repo.ListBooked(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("予約一覧の取得に失敗: %w", err)
	}

	now := s.clock.Now()
	res := Result{Scanned: len(bookings)}
	for _, b := range bookings {
		w, err := slot.Parse(b.Date, b.Time, s.loc)
		if err != nil {
			res.Skipped++
			s.logger.Warn("予約の時間帯を解釈できないためスキップしました",
				slog.String("booking_id", b.ID),
				slog.String("date", b.Date),
				slog.String("time", b.Time),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !w.Expired(now) {
			continue
		}

		deleted, err := s.repo.DeleteByID(ctx, b.ID)
		if err != nil {
			s.finish(&res, start)
			return res, fmt.Errorf("予約 %s の削除に失敗: %w", b.ID, err)
		}
		if !deleted {
			continue
		}
		res.Deleted++
		_ = s.events.Publish(ctx, events.NewBookingEvent(events.TypeBookingExpired, b, now))
	}

	s.finish(&res, start)
	s.logger.Info("予約スイープが完了しました",
		slog.Int("scanned_count", res.Scanned),
		slog.Int("deleted_count", res.Deleted),
		slog.Int("skipped_count", res.Skipped),
		slog.Float64("duration_ms", float64(res.Duration.Milliseconds())),
	)
	return res, nil
}

func (s *Sweeper) finish(res *Result, start time.Time) {
	res.Duration = time.Since(start)
	s.metrics.RecordBookingsExpired(res.Deleted)
	s.metrics.RecordSweep(res.Duration, res.Skipped)
}
