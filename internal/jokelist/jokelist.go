// Package jokelist owns the joke list: filling it from a joke source without
// duplicates, voting, locking, resetting and regenerating the unlocked part,
// keeping a persisted copy in sync after every change.
package jokelist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"jokeboard/internal/models"
	"jokeboard/pkg/logger"
)

const (
	DefaultCount        = 5
	DefaultFetchTimeout = 10 * time.Second

	// attemptsPerJoke sets the default fetch cap relative to the count.
	attemptsPerJoke = 10
)

var (
	ErrBusy            = errors.New("jokes are still being fetched")
	ErrSourceExhausted = errors.New("joke source kept returning jokes already in the list")
	ErrInvalidDelta    = errors.New("vote delta must be +1 or -1")
)

// FetchError is a failed call to the joke source during a fill.
type FetchError struct {
	Attempt int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching joke (attempt %d): %v", e.Attempt, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Source hands out one random joke per call.
type Source interface {
	RandomJoke(ctx context.Context) (models.Joke, error)
}

// Store is the durable copy of the list.
type Store interface {
	Load(ctx context.Context) ([]models.Joke, error)
	Save(ctx context.Context, jokes []models.Joke) error
	Clear(ctx context.Context) error
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Snapshot is what a presentation renders: the status, the jokes sorted by
// votes and, when Status is StatusFailed, the reason.
type Snapshot struct {
	Status Status
	Jokes  []models.Joke
	Err    error
}

type Controller struct {
	src   Source
	store Store

	count        int
	maxAttempts  int
	fetchTimeout time.Duration

	// persistMu orders writes to store the same way the changes were made.
	// It is always taken before mu.
	persistMu sync.Mutex

	mu       sync.Mutex
	jokes    []models.Joke
	status   Status
	err      error
	inFlight bool
}

type Option func(*Controller)

// WithCount sets how many jokes a fill aims for. Non-positive values keep
// DefaultCount.
func WithCount(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.count = n
		}
	}
}

// WithMaxAttempts caps the source calls a single fill may make. Values below
// the count are raised to the count.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		c.maxAttempts = n
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func New(src Source, store Store, opts ...Option) *Controller {
	c := &Controller{
		src:          src,
		store:        store,
		count:        DefaultCount,
		fetchTimeout: DefaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxAttempts <= 0 {
		c.maxAttempts = c.count * attemptsPerJoke
	}
	c.maxAttempts = max(c.maxAttempts, c.count)

	return c
}

func (c *Controller) Count() int {
	return c.count
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) IsLoading() bool {
	return c.Status() == StatusLoading
}

// Jokes returns a copy of the list in stored order.
func (c *Controller) Jokes() []models.Joke {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.Clone(c.jokes)
}

// Sorted returns a copy of the list ordered by votes, highest first. Jokes
// with equal votes keep their stored order.
func (c *Controller) Sorted() []models.Joke {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SortByVotes(c.jokes)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status: c.status,
		Jokes:  SortByVotes(c.jokes),
		Err:    c.err,
	}
}

// SortByVotes returns a stably sorted copy of jokes, highest votes first.
func SortByVotes(jokes []models.Joke) []models.Joke {
	sorted := models.Clone(jokes)
	slices.SortStableFunc(sorted, func(a, b models.Joke) int {
		return cmp.Compare(b.Votes, a.Votes)
	})
	return sorted
}

// Initialize adopts the saved list when there is one and fills a new list
// from the source otherwise. Load failures count as "nothing saved".
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}

	saved, err := c.store.Load(ctx)
	if err != nil {
		logger.Warn("No usable saved joke list, fetching a new one", logger.Err(err))
	}
	if err == nil && len(saved) > 0 {
		c.mu.Lock()
		c.jokes = saved
		c.status = StatusLoaded
		c.err = nil
		c.inFlight = false
		c.mu.Unlock()
		logger.Info("Loaded saved joke list", logger.Int("jokes", len(saved)))
		c.checkSize(len(saved))
		return nil
	}

	return c.fill(ctx, nil)
}

// Regenerate keeps the locked jokes, with their votes, and fetches new ones
// until the list is back to the requested count.
func (c *Controller) Regenerate(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}

	c.mu.Lock()
	basis := make([]models.Joke, 0, c.count)
	for _, j := range c.jokes {
		if j.Locked {
			basis = append(basis, j)
		}
	}
	c.mu.Unlock()

	logger.Info("Regenerating jokes", logger.Int("locked", len(basis)), logger.Int("target", c.count))
	return c.fill(ctx, basis)
}

// begin claims the controller for a fill and switches it to loading.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrBusy
	}
	c.inFlight = true
	c.status = StatusLoading
	c.err = nil
	return nil
}

// fill runs with c.inFlight held and always releases it. The network calls
// happen without c.mu so readers can keep rendering the loading state.
func (c *Controller) fill(ctx context.Context, basis []models.Joke) error {
	c.mu.Lock()
	prevStatus := StatusIdle
	if len(c.jokes) > 0 {
		prevStatus = StatusLoaded
	}
	c.mu.Unlock()

	jokes, err := c.collect(ctx, basis)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.inFlight = false

		if ctx.Err() != nil {
			c.status = prevStatus
			logger.Info("Joke fetch cancelled", logger.Err(ctx.Err()))
			return ctx.Err()
		}

		c.status = StatusFailed
		c.err = err
		logger.Error("Failed to fetch jokes", logger.Err(err))
		return err
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	c.jokes = jokes
	c.status = StatusLoaded
	c.err = nil
	c.inFlight = false
	c.mu.Unlock()

	c.persist(ctx, jokes)
	logger.Info("Joke list filled", logger.Int("jokes", len(jokes)))
	c.checkSize(len(jokes))
	return nil
}

// checkSize notes lists that are not the requested size: saved lists are
// adopted as they are and locked jokes are never dropped.
func (c *Controller) checkSize(n int) {
	if n != c.count {
		logger.Info("Joke list size differs from requested count",
			logger.Int("jokes", n),
			logger.Int("count", c.count),
		)
	}
}

// collect fetches jokes one at a time until basis holds c.count unique ids.
func (c *Controller) collect(ctx context.Context, basis []models.Joke) ([]models.Joke, error) {
	jokes := models.Clone(basis)
	seen := make(map[string]struct{}, c.count)
	for _, j := range jokes {
		seen[j.ID] = struct{}{}
	}

	for attempt := 1; len(jokes) < c.count; attempt++ {
		if attempt > c.maxAttempts {
			return nil, fmt.Errorf("%w: %d of %d unique jokes after %d attempts",
				ErrSourceExhausted, len(jokes), c.count, c.maxAttempts)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		joke, err := c.fetch(ctx)
		if err != nil {
			return nil, &FetchError{Attempt: attempt, Err: err}
		}

		if _, dup := seen[joke.ID]; dup {
			logger.Debug("Duplicate joke discarded", logger.String("id", joke.ID), logger.Int("attempt", attempt))
			continue
		}
		seen[joke.ID] = struct{}{}
		jokes = append(jokes, models.Joke{ID: joke.ID, Text: joke.Text})
	}

	return jokes, nil
}

func (c *Controller) fetch(ctx context.Context) (models.Joke, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	return c.src.RandomJoke(ctx)
}

// Upvote is Vote(ctx, id, +1).
func (c *Controller) Upvote(ctx context.Context, id string) error {
	return c.Vote(ctx, id, 1)
}

// Downvote is Vote(ctx, id, -1).
func (c *Controller) Downvote(ctx context.Context, id string) error {
	return c.Vote(ctx, id, -1)
}

// Vote adds delta to the joke's votes. Votes are not clamped and may go
// negative. An unknown id is ignored.
func (c *Controller) Vote(ctx context.Context, id string, delta int) error {
	if delta != 1 && delta != -1 {
		return ErrInvalidDelta
	}
	return c.update(ctx, id, func(j *models.Joke) {
		j.Votes += delta
	})
}

// ToggleLock flips whether the joke survives Regenerate. An unknown id is
// ignored.
func (c *Controller) ToggleLock(ctx context.Context, id string) error {
	return c.update(ctx, id, func(j *models.Joke) {
		j.Locked = !j.Locked
		logger.Debug("Joke lock toggled", logger.String("id", j.ID), logger.Bool("locked", j.Locked))
	})
}

func (c *Controller) update(ctx context.Context, id string, fn func(*models.Joke)) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}

	i := slices.IndexFunc(c.jokes, func(j models.Joke) bool { return j.ID == id })
	if i < 0 {
		c.mu.Unlock()
		logger.Debug("Joke not in list", logger.String("id", id))
		return nil
	}
	fn(&c.jokes[i])
	jokes := models.Clone(c.jokes)
	c.mu.Unlock()

	c.persist(ctx, jokes)
	return nil
}

// ResetVotes zeroes every vote and clears the saved list. The zeroed list is
// not saved, so the next Initialize starts from a fresh fill. The clear runs
// after any save from an earlier change.
func (c *Controller) ResetVotes(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	for i := range c.jokes {
		c.jokes[i].Votes = 0
	}
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		logger.Warn("Failed to clear saved jokes", logger.Err(err))
	}
	return nil
}

func (c *Controller) persist(ctx context.Context, jokes []models.Joke) {
	if err := c.store.Save(context.WithoutCancel(ctx), jokes); err != nil {
		logger.Warn("Failed to save jokes", logger.Err(err))
	}
}
