// Package clock は現在時刻の取得を抽象化する。
// 予約の有効期限判定やトークン発行時刻をテストから制御するために使う。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// System は実時刻を返すClock。
type System struct{}

// Now はtime.Nowを返す。
func (System) Now() time.Time { return time.Now() }

// Fake はテスト用に操作可能なClock。
type Fake struct {
	mu      sync.Mutex
	current time.Time
}

// NewFake は指定時刻で初期化したFakeを生成する。
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

// Now は保持している時刻を返す。
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Set は時刻を上書きする。
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance は時刻をdだけ進め、更新後の時刻を返す。
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	return f.current
}
