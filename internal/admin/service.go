// Package admin は管理者向けの集計とエクスポートを提供する。
package admin

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/roombook/internal/clock"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/slot"
)

// UpcomingLimit はOverviewで返す今後の予約の最大件数。
const UpcomingLimit = 10

// ExportSheet はエクスポートするワークブックのシート名。
const ExportSheet = "Bookings"

var exportColumns = []string{
	"ID", "Room", "Date", "Time", "Starts At", "Ends At",
	"Capacity", "Floor", "Amenities", "Booked By", "Email", "Created At",
}

// Totals は件数の集計。
type Totals struct {
	Users          int
	Rooms          int
	ActiveBookings int
	BookingsToday  int
}

// RoomCount は会議室ごとの有効な予約数。
type RoomCount struct {
	RoomName string
	Bookings int
}

// Overview は管理画面に表示する集計値。
type Overview struct {
	Totals   Totals
	ByRoom   []RoomCount
	Upcoming []*model.Booking
}

// Service は管理者向けの集計を提供する。
type Service struct {
	users    repository.UserRepository
	rooms    repository.RoomRepository
	bookings repository.BookingRepository
	clock    clock.Clock
	loc      *time.Location
}

// NewService はServiceを生成する。locがnilの場合はtime.Localを使う。
func NewService(
	users repository.UserRepository,
	rooms repository.RoomRepository,
	bookings repository.BookingRepository,
	clk clock.Clock,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{users: users, rooms: rooms, bookings: bookings, clock: clk, loc: loc}
}

// Overview は件数・会議室別予約数・今後の予約を集計する。
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	now := s.clock.Now().In(s.loc)

	var (
		ov  Overview
		err error
	)
	if ov.Totals.Users, err = s.users.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if ov.Totals.Rooms, err = s.rooms.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count rooms: %w", err)
	}
	if ov.Totals.ActiveBookings, err = s.bookings.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("failed to count active bookings: %w", err)
	}
	if ov.Totals.BookingsToday, err = s.bookings.CountOnDate(ctx, now.Format(slot.DateLayout)); err != nil {
		return nil, fmt.Errorf("failed to count today's bookings: %w", err)
	}

	byRoom, err := s.bookings.CountByRoom(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by room: %w", err)
	}
	ov.ByRoom = make([]RoomCount, 0, len(byRoom))
	for name, n := range byRoom {
		ov.ByRoom = append(ov.ByRoom, RoomCount{RoomName: name, Bookings: n})
	}
	sort.Slice(ov.ByRoom, func(i, j int) bool {
		if ov.ByRoom[i].Bookings != ov.ByRoom[j].Bookings {
			return ov.ByRoom[i].Bookings > ov.ByRoom[j].Bookings
		}
		return ov.ByRoom[i].RoomName < ov.ByRoom[j].RoomName
	})

	if ov.Upcoming, err = s.bookings.ListUpcoming(ctx, now, UpcomingLimit); err != nil {
		return nil, fmt.Errorf("failed to list upcoming bookings: %w", err)
	}
	return &ov, nil
}

// ExportBookings は全予約を予約者情報付きでxlsxとしてwに書き出す。
func (s *Service) ExportBookings(ctx context.Context, w io.Writer) error {
	bookings, err := s.bookings.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bookings: %w", err)
	}

	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if b.UserID != nil {
			ids = append(ids, *b.UserID)
		}
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to find booking users: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeRow(f, 1, toCells(exportColumns)); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err := f.SetCellStyle(ExportSheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, b := range bookings {
		var name, email string
		if b.UserID != nil {
			if u := users[*b.UserID]; u != nil {
				name, email = u.FullName, u.Email
			}
		}
		row := []interface{}{
			b.ID,
			b.RoomName,
			b.Date,
			b.Time,
			b.StartsAt.In(s.loc).Format(time.DateTime),
			b.EndsAt.In(s.loc).Format(time.DateTime),
			b.Capacity,
			b.Floor,
			strings.Join(b.Amenities, ", "),
			name,
			email,
			b.CreatedAt.In(s.loc).Format(time.DateTime),
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(ExportSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func toCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
