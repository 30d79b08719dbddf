package room

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SeedRoom はrooms.yamlの1会議室分の定義。
type SeedRoom struct {
	Name      string   `yaml:"name"`
	Capacity  int      `yaml:"capacity"`
	Floor     int      `yaml:"floor"`
	Amenities []string `yaml:"amenities"`
}

// SeedFile はrooms.yamlのルート。
type SeedFile struct {
	Rooms []SeedRoom `yaml:"rooms"`
}

// LoadSeedFile はYAMLファイルから会議室定義を読み込む。
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms seed: %w", err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rooms seed: %w", err)
	}
	if len(f.Rooms) == 0 {
		return nil, fmt.Errorf("rooms seed %s defines no rooms", path)
	}
	return &f, nil
}

// SeedResult はSeedの集計結果。
type SeedResult struct {
	Created int
	Updated int
}

// Seed は会議室定義を名前をキーにUPSERTする。定義にない会議室は削除しない。
// 1件でも検証に失敗した場合は何も書き込まない。
func (s *Service) Seed(ctx context.Context, f *SeedFile) (SeedResult, error) {
	var res SeedResult

	for i, r := range f.Rooms {
		if _, err := s.normalize(Input(r)); err != nil {
			return res, fmt.Errorf("rooms[%d] (%q): %w", i, r.Name, err)
		}
	}

	now := s.clock.Now()
	for _, r := range f.Rooms {
		room, _ := s.normalize(Input(r))
		room.ID = uuid.New().String()
		room.CreatedAt = now
		room.UpdatedAt = now

		created, err := s.repo.UpsertByName(ctx, room)
		if err != nil {
			return res, fmt.Errorf("seed room %q: %w", room.Name, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	slog.Info("rooms seeded",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
	)
	return res, nil
}
