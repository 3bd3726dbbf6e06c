package jokelist

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"jokeboard/internal/models"
	"jokeboard/internal/storage"
	"jokeboard/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInitializeFillsWhenNothingSaved(t *testing.T) {
	ctx := context.Background()
	src := newSource("a", "b", "c", "d", "e")
	store := newStore()
	c := New(src, store)

	require.NoError(t, c.Initialize(ctx))

	want := []models.Joke{
		{ID: "a", Text: "joke a"},
		{ID: "b", Text: "joke b"},
		{ID: "c", Text: "joke c"},
		{ID: "d", Text: "joke d"},
		{ID: "e", Text: "joke e"},
	}
	if diff := cmp.Diff(want, c.Jokes()); diff != "" {
		t.Errorf("Jokes() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StatusLoaded, c.Status())
	assert.False(t, c.IsLoading())

	saved, err := store.saved()
	require.NoError(t, err)
	assert.Equal(t, want, saved, "filled list is persisted")
}

func TestInitializeAdoptsSavedList(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	saved := []models.Joke{{ID: "x", Text: "saved", Votes: -4, Locked: true}}
	require.NoError(t, store.Collection.Save(ctx, saved))

	src := newSource("a")
	c := New(src, store)
	require.NoError(t, c.Initialize(ctx))

	assert.Equal(t, saved, c.Jokes(), "saved list adopted verbatim, even below the count")
	assert.Zero(t, src.Calls())
	assert.Equal(t, StatusLoaded, c.Status())
}

func TestInitializeIgnoresCorruptOrEmptySave(t *testing.T) {
	for name, raw := range map[string]string{
		"corrupt":   `{nope`,
		"empty":     `[]`,
		"duplicate": `[{"id":"a"},{"id":"a"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			store.mem.Put("jokes", []byte(raw))

			c := New(newSource("p", "q"), store, WithCount(2))
			require.NoError(t, c.Initialize(context.Background()))
			assert.Equal(t, []string{"p", "q"}, models.IDs(c.Jokes()))
		})
	}
}

func TestFillDiscardsDuplicates(t *testing.T) {
	src := newSource("A", "A", "B", "A", "C")
	c := New(src, newStore(), WithCount(3))

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, []string{"A", "B", "C"}, models.IDs(c.Jokes()))
	assert.Equal(t, 5, src.Calls())
	for _, j := range c.Jokes() {
		assert.Zero(t, j.Votes, "new jokes start without votes")
		assert.False(t, j.Locked, "new jokes start unlocked")
	}
}

func TestFillExhaustedSourceFails(t *testing.T) {
	src := newSource("a", "b") // then "b" forever
	store := newStore()
	c := New(src, store, WithCount(3), WithMaxAttempts(7))

	err := c.Initialize(context.Background())

	require.ErrorIs(t, err, ErrSourceExhausted)
	assert.Equal(t, 7, src.Calls())
	snap := c.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.ErrorIs(t, snap.Err, ErrSourceExhausted)
	assert.Zero(t, store.Saves(), "nothing persisted on failure")
}

func TestFillSourceErrorFails(t *testing.T) {
	src := newSource("a", "")
	store := newStore()
	c := New(src, store, WithCount(3))

	err := c.Initialize(context.Background())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 2, fetchErr.Attempt)
	assert.ErrorIs(t, err, errSourceDown)
	assert.Equal(t, StatusFailed, c.Status(), "never stuck in loading")
	assert.Empty(t, c.Jokes())
	assert.Zero(t, store.Saves())
}

func TestRetryAfterFailure(t *testing.T) {
	src := newSource("a", "")
	c := New(src, newStore(), WithCount(2))
	require.Error(t, c.Initialize(context.Background()))

	src.mu.Lock()
	src.ids = []string{"a", "b"}
	src.calls = 0
	src.mu.Unlock()

	require.NoError(t, c.Regenerate(context.Background()))
	assert.Equal(t, StatusLoaded, c.Status())
	assert.Nil(t, c.Snapshot().Err)
	assert.Equal(t, []string{"a", "b"}, models.IDs(c.Jokes()))
}

func TestVoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	c := New(newSource("a", "b", "c"), store, WithCount(3))
	require.NoError(t, c.Initialize(ctx))
	before := c.Jokes()

	require.NoError(t, c.Upvote(ctx, "b"))
	assert.Equal(t, 1, c.Jokes()[1].Votes)
	saved, err := store.saved()
	require.NoError(t, err)
	assert.Equal(t, 1, saved[1].Votes, "vote persisted immediately")

	require.NoError(t, c.Downvote(ctx, "b"))
	assert.Equal(t, before, c.Jokes(), "up then down restores every record")
}

func TestVoteAllowsNegative(t *testing.T) {
	ctx := context.Background()
	c := New(newSource("a"), newStore(), WithCount(1))
	require.NoError(t, c.Initialize(ctx))

	for range 3 {
		require.NoError(t, c.Downvote(ctx, "a"))
	}
	assert.Equal(t, -3, c.Jokes()[0].Votes)
}

func TestVoteRejectsOtherDeltas(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	c := New(newSource("a"), store, WithCount(1))
	require.NoError(t, c.Initialize(ctx))
	saves := store.Saves()

	for _, d := range []int{0, 2, -5} {
		assert.ErrorIs(t, c.Vote(ctx, "a", d), ErrInvalidDelta)
	}
	assert.Zero(t, c.Jokes()[0].Votes)
	assert.Equal(t, saves, store.Saves())
}

func TestUnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	c := New(newSource("a"), store, WithCount(1))
	require.NoError(t, c.Initialize(ctx))
	saves := store.Saves()
	before := c.Jokes()

	assert.NoError(t, c.Upvote(ctx, "missing"))
	assert.NoError(t, c.ToggleLock(ctx, "missing"))
	assert.Equal(t, before, c.Jokes())
	assert.Equal(t, saves, store.Saves(), "no write for unknown ids")
}

func TestToggleLockPersists(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	c := New(newSource("a", "b"), store, WithCount(2))
	require.NoError(t, c.Initialize(ctx))

	require.NoError(t, c.ToggleLock(ctx, "a"))
	assert.True(t, c.Jokes()[0].Locked)
	saved, err := store.saved()
	require.NoError(t, err)
	assert.True(t, saved[0].Locked)

	require.NoError(t, c.ToggleLock(ctx, "a"))
	assert.False(t, c.Jokes()[0].Locked)
}

func TestResetVotesClearsStorageWithoutSaving(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	c := New(newSource("a", "b"), store, WithCount(2))
	require.NoError(t, c.Initialize(ctx))
	require.NoError(t, c.Upvote(ctx, "a"))
	require.NoError(t, c.ToggleLock(ctx, "b"))
	require.NoError(t, c.Downvote(ctx, "b"))
	saves := store.Saves()

	require.NoError(t, c.ResetVotes(ctx))

	want := []models.Joke{
		{ID: "a", Text: "joke a"},
		{ID: "b", Text: "joke b", Locked: true},
	}
	assert.Equal(t, want, c.Jokes(), "votes zeroed, order and locks kept")
	assert.Equal(t, saves, store.Saves(), "zeroed list is not saved")

	// A reload finds nothing and fills from scratch.
	src := newSource("z", "y")
	reloaded := New(src, store, WithCount(2))
	require.NoError(t, reloaded.Initialize(ctx))
	assert.Equal(t, []string{"z", "y"}, models.IDs(reloaded.Jokes()))
	assert.Equal(t, 2, src.Calls())
}

// loadedGated returns a controller over a gated store that already holds
// the jokes a and b, without having saved anything yet.
func loadedGated(t *testing.T) (*Controller, *gatedStore) {
	t.Helper()
	store := newGatedStore()
	c := New(newSource("a"), store, WithCount(2))
	c.jokes = []models.Joke{{ID: "a", Text: "joke a"}, {ID: "b", Text: "joke b"}}
	c.status = StatusLoaded
	return c, store
}

func TestSavesLandInChangeOrder(t *testing.T) {
	ctx := context.Background()
	c, store := loadedGated(t)

	first := make(chan error, 1)
	go func() { first <- c.Upvote(ctx, "a") }()
	<-store.entered

	second := make(chan error, 1)
	go func() { second <- c.Upvote(ctx, "a") }()
	// Give the second vote time to reach the store if nothing holds it back.
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, 2, c.Jokes()[0].Votes)
	saved, err := store.Collection.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, saved[0].Votes, "saved list matches memory")
}

func TestResetAfterPendingSaveStaysCleared(t *testing.T) {
	ctx := context.Background()
	c, store := loadedGated(t)

	vote := make(chan error, 1)
	go func() { vote <- c.Upvote(ctx, "a") }()
	<-store.entered

	reset := make(chan error, 1)
	go func() { reset <- c.ResetVotes(ctx) }()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-vote)
	require.NoError(t, <-reset)

	assert.Zero(t, c.Jokes()[0].Votes)
	_, err := store.Collection.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound, "earlier save does not bring the list back")
}

// captureLogs sends log output to a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := logger.Log
	t.Cleanup(func() { logger.Log = prev })

	var buf bytes.Buffer
	logger.Init("info", logger.FormatJSON, &buf)
	return &buf
}

func TestSizeMismatchIsLogged(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Collection.Save(ctx, []models.Joke{
		{ID: "1", Locked: true},
		{ID: "2", Locked: true},
		{ID: "3", Locked: true},
	}))
	logs := captureLogs(t)

	c := New(newSource("x"), store, WithCount(2))
	require.NoError(t, c.Initialize(ctx))
	assert.Len(t, c.Jokes(), 3, "saved list adopted as is")
	assert.Contains(t, logs.String(), "Joke list size differs from requested count")

	logs.Reset()
	require.NoError(t, c.Regenerate(ctx))
	assert.Len(t, c.Jokes(), 3, "locked jokes are kept over the count")
	assert.Contains(t, logs.String(), `"count":2`)

	logs.Reset()
	fresh := New(newSource("p", "q"), newStore(), WithCount(2))
	require.NoError(t, fresh.Initialize(ctx))
	assert.NotContains(t, logs.String(), "size differs")
}

func TestRegenerateKeepsLockedJokes(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Collection.Save(ctx, []models.Joke{
		{ID: "1", Text: "one", Locked: true, Votes: 5},
		{ID: "2", Text: "two", Votes: 2},
	}))
	src := newSource("1", "3", "4")
	c := New(src, store, WithCount(3))
	require.NoError(t, c.Initialize(ctx))

	require.NoError(t, c.Regenerate(ctx))

	want := []models.Joke{
		{ID: "1", Text: "one", Locked: true, Votes: 5},
		{ID: "3", Text: "joke 3"},
		{ID: "4", Text: "joke 4"},
	}
	if diff := cmp.Diff(want, c.Jokes()); diff != "" {
		t.Errorf("Jokes() after Regenerate mismatch (-want +got):\n%s", diff)
	}
	saved, err := store.saved()
	require.NoError(t, err)
	assert.Equal(t, want, saved)
}

func TestRegenerateWithAllLockedFetchesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	locked := []models.Joke{{ID: "1", Locked: true}, {ID: "2", Locked: true}}
	require.NoError(t, store.Collection.Save(ctx, locked))
	src := newSource("x")
	c := New(src, store, WithCount(2))
	require.NoError(t, c.Initialize(ctx))

	require.NoError(t, c.Regenerate(ctx))
	assert.Equal(t, locked, c.Jokes())
	assert.Zero(t, src.Calls())
}

func TestRegenerateFailureKeepsList(t *testing.T) {
	ctx := context.Background()
	src := newSource("a", "b", "")
	c := New(src, newStore(), WithCount(2))
	require.NoError(t, c.Initialize(ctx))
	require.NoError(t, c.Upvote(ctx, "a"))
	before := c.Jokes()

	err := c.Regenerate(ctx)
	require.ErrorIs(t, err, errSourceDown)
	assert.Equal(t, before, c.Jokes())
	assert.Equal(t, StatusFailed, c.Status())
}

func TestSortedByVotesStable(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Collection.Save(ctx, []models.Joke{
		{ID: "a", Votes: 3},
		{ID: "b", Votes: -1},
		{ID: "c", Votes: 3},
		{ID: "d", Votes: 0},
	}))
	c := New(newSource("x"), store)
	require.NoError(t, c.Initialize(ctx))

	first := c.Sorted()
	assert.Equal(t, []string{"a", "c", "d", "b"}, models.IDs(first))

	second := c.Sorted()
	assert.Equal(t, first, second, "sorting is idempotent")
	assert.Equal(t, []string{"a", "b", "c", "d"}, models.IDs(c.Jokes()), "stored order untouched")
	assert.Equal(t, first, c.Snapshot().Jokes)
}

func TestConcurrentFillIsRejected(t *testing.T) {
	src := newBlockingSource()
	store := newStore()
	c := New(src, store, WithCount(1))

	done := make(chan error, 1)
	go func() { done <- c.Initialize(context.Background()) }()
	<-src.started

	assert.True(t, c.IsLoading())
	assert.ErrorIs(t, c.Regenerate(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.Initialize(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.Upvote(context.Background(), "a"), ErrBusy)
	assert.ErrorIs(t, c.ToggleLock(context.Background(), "a"), ErrBusy)
	assert.ErrorIs(t, c.ResetVotes(context.Background()), ErrBusy)
	assert.Equal(t, StatusLoading, c.Snapshot().Status)

	close(src.release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusLoaded, c.Status())
	assert.Len(t, c.Jokes(), 1)
}

func TestCancelledFillLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Collection.Save(ctx, []models.Joke{{ID: "keep", Votes: 1}}))
	src := newBlockingSource()
	c := New(src, store, WithCount(2))
	require.NoError(t, c.Initialize(ctx))
	saves := store.Saves()

	fillCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Regenerate(fillCtx) }()
	<-src.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Regenerate did not return after cancel")
	}
	assert.Equal(t, []models.Joke{{ID: "keep", Votes: 1}}, c.Jokes())
	assert.Equal(t, StatusLoaded, c.Status())
	assert.Equal(t, saves, store.Saves())
}

func TestFetchTimeoutFailsFill(t *testing.T) {
	src := newBlockingSource()
	c := New(src, newStore(), WithCount(1), WithFetchTimeout(20*time.Millisecond))

	err := c.Initialize(context.Background())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusFailed, c.Status())
}

func TestSaveErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	store.saveErr = errors.New("disk full")
	c := New(newSource("a"), store, WithCount(1))

	require.NoError(t, c.Initialize(ctx))
	require.NoError(t, c.Upvote(ctx, "a"))
	assert.Equal(t, 1, c.Jokes()[0].Votes)
}

func TestOptionsDefaults(t *testing.T) {
	c := New(nil, nil, WithCount(0), WithFetchTimeout(-1))
	assert.Equal(t, DefaultCount, c.Count())
	assert.Equal(t, DefaultCount*attemptsPerJoke, c.maxAttempts)
	assert.Equal(t, DefaultFetchTimeout, c.fetchTimeout)

	c = New(nil, nil, WithCount(4), WithMaxAttempts(2))
	assert.Equal(t, 4, c.maxAttempts, "cap is at least the count")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "loaded", StatusLoaded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
