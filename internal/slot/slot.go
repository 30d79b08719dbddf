// Package slot は予約の日付と時刻ラベルを時間区間に正規化する。
//
// 時刻ラベルは次のいずれかの形式を受け付ける。
//
//	"09:00"               開始時刻のみ。終了は開始の1時間後
//	"9:00 AM"             12時間表記
//	"09:00 - 10:30"       範囲指定。区切りの空白は任意
//	"11:00 PM - 1:00 AM"  終了が開始以前なら翌日に繰り越す
package slot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout は予約日付の形式。
const DateLayout = "2006-01-02"

// DefaultDuration は開始時刻のみ指定された場合の予約時間。
const DefaultDuration = time.Hour

// Window は半開区間 [Start, End) で表した予約時間帯。
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps は2つの時間帯が重なるかを返す。
// 端点が一致するだけの隣接区間は重ならない。
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Expired は時刻nowが終了時刻を過ぎているかを返す。
func (w Window) Expired(now time.Time) bool {
	return now.After(w.End)
}

// Duration は時間帯の長さを返す。
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ParseError は日付または時刻ラベルを解釈できなかったことを表す。
type ParseError struct {
	Date   string
	Label  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("slot: cannot parse date %q time %q: %s", e.Date, e.Label, e.Reason)
}

// Parse は日付 (YYYY-MM-DD) と時刻ラベルを loc における時間帯に変換する。
// loc が nil の場合は time.Local を使う。
func Parse(date, label string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	fail := func(reason string) (Window, error) {
		return Window{}, &ParseError{Date: date, Label: label, Reason: reason}
	}

	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return fail("date must be YYYY-MM-DD")
	}

	parts := strings.Split(label, "-")
	if len(parts) > 2 {
		return fail("too many '-' separators")
	}

	startMin, err := parseMark(parts[0])
	if err != nil {
		return fail(err.Error())
	}
	start := wallClock(day, startMin)

	var end time.Time
	if len(parts) == 1 {
		end = start.Add(DefaultDuration)
	} else {
		endMin, err := parseMark(parts[1])
		if err != nil {
			return fail(err.Error())
		}
		end = wallClock(day, endMin)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}

	return Window{Start: start, End: end}, nil
}

// wallClock はdayの0時からminutes分後の壁時計時刻を返す。夏時間の切り替え日でも表記どおりの時刻になる。
func wallClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, day.Location())
}

// parseMark は "HH:MM" または "H:MM AM|PM" を0時からの経過分に変換する。
func parseMark(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}

	meridiem := ""
	if strings.HasSuffix(s, "AM") || strings.HasSuffix(s, "PM") {
		meridiem = s[len(s)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}

	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	if len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute %q", mm)
	}

	switch meridiem {
	case "":
		if h < 0 || h > 23 {
			return 0, fmt.Errorf("hour %d out of range", h)
		}
	default:
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("hour %d out of range for %s", h, meridiem)
		}
		if h == 12 {
			h = 0
		}
		if meridiem == "PM" {
			h += 12
		}
	}

	return h*60 + m, nil
}
