package database

import (
	"context"
	"errors"
	"fmt"

	"jokeboard/internal/config"
	"jokeboard/internal/models"
	"jokeboard/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	selectListQuery = `SELECT payload FROM joke_lists WHERE list_key = $1`
	deleteListQuery = `DELETE FROM joke_lists WHERE list_key = $1`
)

type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database at %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate brings the schema up to date through a database/sql handle that
// borrows connections from the pool.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()
	return Migrate(ctx, sqlDB, goose.DialectPostgres)
}

// PostgresStore keeps one JSONB document per list key.
type PostgresStore struct {
	db *DB
}

func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]models.Joke, error) {
	var payload []byte
	err := s.db.Pool.QueryRow(ctx, selectListQuery, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load joke list: %w", err)
	}
	return storage.Decode(key, payload)
}

func (s *PostgresStore) Save(ctx context.Context, key string, jokes []models.Joke) error {
	payload, err := storage.Encode(jokes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO joke_lists (list_key, payload)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (list_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Pool.Exec(ctx, query, key, string(payload)); err != nil {
		return fmt.Errorf("failed to save joke list: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.Pool.Exec(ctx, deleteListQuery, key); err != nil {
		return fmt.Errorf("failed to clear joke list: %w", err)
	}
	return nil
}
