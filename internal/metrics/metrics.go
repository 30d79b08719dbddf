// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 予約サービス、スイーパー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordBookingCreated()
	RecordBookingConflict()
	RecordBookingCancelled()
	RecordBookingsExpired(count int)
	RecordSweep(duration time.Duration, skipped int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	bookingsCreated   prometheus.Counter
	bookingConflicts  prometheus.Counter
	bookingsCancelled prometheus.Counter
	bookingsExpired   prometheus.Counter
	sweepSkipped      prometheus.Counter
	sweepDuration     prometheus.Histogram
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_bookings_created_total",
			Help: "作成された予約の合計数",
		}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_booking_conflicts_total",
			Help: "時間帯の重複で拒否された予約の合計数",
		}),
		bookingsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_bookings_cancelled_total",
			Help: "取り消された予約の合計数",
		}),
		bookingsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_bookings_expired_total",
			Help: "期限切れで削除された予約の合計数",
		}),
		sweepSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_sweep_skipped_total",
			Help: "日時を解釈できずスイープで読み飛ばした予約の合計数",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roombook_sweep_duration_seconds",
			Help:    "期限切れ予約スイープの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.bookingsCreated,
		c.bookingConflicts,
		c.bookingsCancelled,
		c.bookingsExpired,
		c.sweepSkipped,
		c.sweepDuration,
		c.httpStatus,
	)

	return c
}

// RecordBookingCreated は予約作成を記録する。
func (c *Collector) RecordBookingCreated() {
	c.bookingsCreated.Inc()
}

// RecordBookingConflict は重複による予約拒否を記録する。
func (c *Collector) RecordBookingConflict() {
	c.bookingConflicts.Inc()
}

// RecordBookingCancelled は予約取消を記録する。
func (c *Collector) RecordBookingCancelled() {
	c.bookingsCancelled.Inc()
}

// RecordBookingsExpired は期限切れで削除した予約数を記録する。
func (c *Collector) RecordBookingsExpired(count int) {
	c.bookingsExpired.Add(float64(count))
}

// RecordSweep はスイープ1回の所要時間と読み飛ばし件数を記録する。
func (c *Collector) RecordSweep(duration time.Duration, skipped int) {
	c.sweepDuration.Observe(duration.Seconds())
	c.sweepSkipped.Add(float64(skipped))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordBookingCreated() {}
func (Nop) RecordBookingConflict() {}
func (Nop) RecordBookingCancelled() {}
func (Nop) RecordBookingsExpired(int) {}
func (Nop) RecordSweep(time.Duration, int) {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = Nop{}
