package jokelist

import (
	"context"
	"errors"
	"sync"

	"jokeboard/internal/models"
	"jokeboard/internal/storage"
)

var errSourceDown = errors.New("source down")

// scriptedSource returns jokes for the scripted ids in order, then keeps
// returning the last one. An empty id in the script yields err.
type scriptedSource struct {
	mu    sync.Mutex
	ids   []string
	err   error
	calls int
}

func newSource(ids ...string) *scriptedSource {
	return &scriptedSource{ids: ids, err: errSourceDown}
}

func (s *scriptedSource) RandomJoke(ctx context.Context) (models.Joke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Joke{}, err
	}

	i := min(s.calls, len(s.ids)-1)
	s.calls++
	if len(s.ids) == 0 || s.ids[i] == "" {
		return models.Joke{}, s.err
	}
	id := s.ids[i]
	// Sources hand out fresh records; votes and locks must be ignored.
	return models.Joke{ID: id, Text: "joke " + id, Votes: 42, Locked: true}, nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingSource parks every call until release is closed or ctx ends.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	next    int
}

func newBlockingSource() *blockingSource {
	return &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSource) RandomJoke(ctx context.Context) (models.Joke, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		s.next++
		id := string(rune('a' + s.next - 1))
		return models.Joke{ID: id, Text: id}, nil
	case <-ctx.Done():
		return models.Joke{}, ctx.Err()
	}
}

// recordingStore wraps storage.Memory bound to one key and counts writes.
type recordingStore struct {
	*storage.Collection
	mem *storage.Memory

	mu      sync.Mutex
	saves   int
	clears  int
	saveErr error
}

func newStore() *recordingStore {
	mem := storage.NewMemory()
	return &recordingStore{Collection: storage.Bind(mem, "jokes"), mem: mem}
}

func (r *recordingStore) Save(ctx context.Context, jokes []models.Joke) error {
	r.mu.Lock()
	r.saves++
	err := r.saveErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Collection.Save(ctx, jokes)
}

func (r *recordingStore) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.clears++
	r.mu.Unlock()
	return r.Collection.Clear(ctx)
}

func (r *recordingStore) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *recordingStore) saved() ([]models.Joke, error) {
	return r.Collection.Load(context.Background())
}

// gatedStore parks the first Save until release is closed, so a second
// change can race it.
type gatedStore struct {
	*storage.Collection

	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Collection: storage.Bind(storage.NewMemory(), "jokes"),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gatedStore) Save(ctx context.Context, jokes []models.Joke) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Collection.Save(ctx, jokes)
}
