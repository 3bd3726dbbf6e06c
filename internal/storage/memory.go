package storage

import (
	"context"
	"sync"

	"jokeboard/internal/models"
)

// Memory keeps encoded lists in a map. It round-trips through the codec so
// it behaves like the durable backends, including corrupt-value handling.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]models.Joke, error) {
	m.mu.Lock()
	b, ok := m.data[key]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return Decode(key, b)
}

func (m *Memory) Save(_ context.Context, key string, jokes []models.Joke) error {
	b, err := Encode(jokes)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Put stores raw bytes under key, bypassing the codec.
func (m *Memory) Put(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}
