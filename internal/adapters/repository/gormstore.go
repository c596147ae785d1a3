package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/okian/lounge/internal/domain/model"
)

// maxApplyAttempts bounds optimistic retries when a concurrent writer bumps
// the row version between read and write.
const maxApplyAttempts = 8

// playerRow is the SQLite table layout. History is stored as a JSON array.
type playerRow struct {
	Name      string  `gorm:"primaryKey"`
	MMR       int64   `gorm:"column:mmr;not null;default:0"`
	Wins      int64   `gorm:"not null;default:0"`
	Losses    int64   `gorm:"not null;default:0"`
	History   []int64 `gorm:"serializer:json"`
	Version   int64   `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (playerRow) TableName() string { return "players" }

func (r playerRow) player() model.Player {
	p := model.Player{Name: r.Name, MMR: r.MMR, Wins: r.Wins, Losses: r.Losses, History: r.History}
	if p.History == nil {
		p.History = []int64{}
	}
	return p
}

// GormStore keeps players in an embedded SQLite database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path and
// migrates the players table.
func NewSQLiteStore(ctx context.Context, path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&playerRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Get implements Store.Get.
func (s *GormStore) Get(ctx context.Context, name string) (p model.Player, err error) {
	defer observe(BackendSQLite, "get", time.Now(), &err)

	var row playerRow
	err = s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Player{}, ErrNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("sqlite get: %w", err)
	}
	return row.player(), nil
}

// List implements Store.List. Players come back ordered by name.
func (s *GormStore) List(ctx context.Context) (out []model.Player, err error) {
	defer observe(BackendSQLite, "list", time.Now(), &err)

	var rows []playerRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	out = make([]model.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.player())
	}
	return out, nil
}

// Apply implements Store.Apply. The read and the write share a transaction
// and the write is conditioned on the row version it read, so a concurrent
// writer forces a retry instead of a lost update.
func (s *GormStore) Apply(ctx context.Context, name string, mmr int64) (ch model.Change, err error) {
	defer observe(BackendSQLite, "apply", time.Now(), &err)

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		var applied bool
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row playerRow
			if err := tx.Where("name = ?", name).First(&row).Error; err != nil {
				return err
			}
			next, change, err := row.player().Applied(mmr)
			if err != nil {
				return err
			}
			read := row.Version
			row.MMR, row.Wins, row.Losses, row.History = next.MMR, next.Wins, next.Losses, next.History
			row.Version++
			res := tx.Model(&row).
				Where("version = ?", read).
				Select("mmr", "wins", "losses", "history", "version", "updated_at").
				Updates(&row)
			if res.Error != nil {
				return res.Error
			}
			applied = res.RowsAffected == 1
			ch = change
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Change{}, ErrNotFound
		}
		if errors.Is(err, ErrDeltaOverflow) {
			return model.Change{}, err
		}
		if err != nil {
			return model.Change{}, fmt.Errorf("sqlite apply: %w", err)
		}
		if applied {
			return ch, nil
		}
	}
	return model.Change{}, fmt.Errorf("sqlite apply: %s: too much contention", name)
}

// Create implements Store.Create.
func (s *GormStore) Create(ctx context.Context, p model.Player) (err error) {
	defer observe(BackendSQLite, "create", time.Now(), &err)

	if p.Name == "" {
		return ErrInvalidName
	}
	history := p.History
	if history == nil {
		history = []int64{}
	}
	row := playerRow{Name: p.Name, MMR: p.MMR, Wins: p.Wins, Losses: p.Losses, History: history}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&playerRow{}).Where("name = ?", p.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, ErrAlreadyExists) {
		return err
	}
	if err != nil {
		return fmt.Errorf("sqlite create: %w", err)
	}
	return nil
}

// Count implements Store.Count.
func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&playerRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("sqlite count: %w", err)
	}
	return int(n), nil
}

// Ping implements Store.Ping.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *GormStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
