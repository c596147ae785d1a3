package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/lounge/internal/domain/model"
)

//go:embed schema.sql
var schema embed.FS

const (
	pgUniqueViolation = "23505"
	pgOutOfRange      = "22003"
)

// PostgresStore keeps players in a PostgreSQL table through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool for dsn, pings it and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func scanPlayer(row pgx.CollectableRow) (model.Player, error) {
	var p model.Player
	err := row.Scan(&p.Name, &p.MMR, &p.Wins, &p.Losses, &p.History)
	if p.History == nil {
		p.History = []int64{}
	}
	return p, err
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, name string) (p model.Player, err error) {
	defer observe(BackendPostgres, "get", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
        SELECT name, mmr, wins, losses, history
        FROM players WHERE name = $1
    `, name)
	if err != nil {
		return model.Player{}, fmt.Errorf("postgres get: %w", err)
	}
	p, err = pgx.CollectExactlyOneRow(rows, scanPlayer)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, ErrNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("postgres get: %w", err)
	}
	return p, nil
}

// List implements Store.List. Players come back ordered by name.
func (s *PostgresStore) List(ctx context.Context) (out []model.Player, err error) {
	defer observe(BackendPostgres, "list", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
        SELECT name, mmr, wins, losses, history
        FROM players ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	out, err = pgx.CollectRows(rows, scanPlayer)
	if err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	return out, nil
}

// Apply implements Store.Apply. Column references on the right-hand side of
// SET read the pre-update row, so a single statement is atomic per player.
// The returned delta is the element just appended to history.
func (s *PostgresStore) Apply(ctx context.Context, name string, mmr int64) (ch model.Change, err error) {
	defer observe(BackendPostgres, "apply", time.Now(), &err)

	var delta int64
	err = s.pool.QueryRow(ctx, `
        UPDATE players SET
            mmr        = $2::bigint,
            history    = array_append(history, $2::bigint - mmr),
            wins       = wins   + CASE WHEN $2::bigint > mmr THEN 1 ELSE 0 END,
            losses     = losses + CASE WHEN $2::bigint > mmr THEN 0 ELSE 1 END,
            updated_at = now()
        WHERE name = $1
        RETURNING history[cardinality(history)]
    `, name, mmr).Scan(&delta)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Change{}, ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgOutOfRange {
		return model.Change{}, fmt.Errorf("%s -> %d: %w", name, mmr, ErrDeltaOverflow)
	}
	if err != nil {
		return model.Change{}, fmt.Errorf("postgres apply: %w", err)
	}
	return model.NewChange(name, mmr-delta, mmr), nil
}

// Create implements Store.Create.
func (s *PostgresStore) Create(ctx context.Context, p model.Player) (err error) {
	defer observe(BackendPostgres, "create", time.Now(), &err)

	if p.Name == "" {
		return ErrInvalidName
	}
	if p.History == nil {
		p.History = []int64{}
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO players(name, mmr, wins, losses, history)
        VALUES ($1, $2, $3, $4, $5)
    `, p.Name, p.MMR, p.Wins, p.Losses, p.History)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres create: %w", err)
	}
	return nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres count: %w", err)
	}
	return n, nil
}

// Ping implements Store.Ping.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
