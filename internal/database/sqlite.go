package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jokeboard/internal/models"
	"jokeboard/internal/storage"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the single-file SQL backend. It shares the joke_lists
// schema with PostgresStore and migrates itself on open.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	if err := Migrate(ctx, db, goose.DialectSQLite3); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]models.Joke, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM joke_lists WHERE list_key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load joke list: %w", err)
	}
	return storage.Decode(key, []byte(payload))
}

func (s *SQLiteStore) Save(ctx context.Context, key string, jokes []models.Joke) error {
	payload, err := storage.Encode(jokes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO joke_lists (list_key, payload)
		VALUES (?, ?)
		ON CONFLICT (list_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, string(payload)); err != nil {
		return fmt.Errorf("failed to save joke list: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM joke_lists WHERE list_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear joke list: %w", err)
	}
	return nil
}
