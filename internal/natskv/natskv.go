// Package natskv persists joke lists in a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"jokeboard/internal/config"
	"jokeboard/internal/models"
	"jokeboard/internal/storage"
	"jokeboard/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const bucketDescription = "jokeboard joke lists"

var ErrInvalidKey = errors.New("invalid key for NATS key-value bucket")

var keyPattern = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

type Store struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
	cfg  config.NATSConfig
}

// New connects to NATS and opens the bucket, creating it on first use.
func New(ctx context.Context, cfg config.NATSConfig) (*Store, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("jokeboard"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: bucketDescription,
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open key-value bucket %s: %w", cfg.Bucket, err)
	}

	logger.Debug("Opened NATS key-value bucket",
		logger.String("url", cfg.URL),
		logger.String("bucket", cfg.Bucket),
	)

	return &Store{conn: conn, kv: kv, cfg: cfg}, nil
}

func (s *Store) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

var errDisconnected = errors.New("not connected to NATS")

func (s *Store) Ping(context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return errDisconnected
	}
	return nil
}

func validKey(key string) error {
	if !keyPattern.MatchString(key) || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) ([]models.Joke, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return storage.Decode(key, entry.Value())
}

func (s *Store) Save(ctx context.Context, key string, jokes []models.Joke) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := storage.Encode(jokes)
	if err != nil {
		return err
	}

	rev, err := s.kv.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	logger.Debug("Joke list stored",
		logger.String("bucket", s.cfg.Bucket),
		logger.String("key", key),
		logger.Any("revision", rev),
	)
	return nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
