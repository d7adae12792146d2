package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-discovery-recommender/internal/models"
)

func criteria(genres ...string) models.PreferenceCriteria {
	return models.PreferenceCriteria{
		MoodMode:        models.MoodChosen,
		Mood:            "Happy",
		FreeTimeMinutes: 120,
		Language:        models.Any,
		Country:         models.Any,
		Era:             models.Any,
		Popularity:      models.Any,
		Genres:          genres,
		RequestedCount:  5,
	}
}

func movies(ids ...int) []models.Movie {
	out := make([]models.Movie, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Movie{ID: id, Title: "Movie", Genres: []string{"Drama", "Comedy"}, Duration: 95 + id})
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore() (*Store, *MemoryBackend) {
	b := NewMemoryBackend()
	return NewStore(b, nil, 0), b
}

func next(t *testing.T, sub *Subscription) []models.Recommendation {
	t.Helper()
	select {
	case v, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("no update within 1s")
		return nil
	}
}

func assertNoUpdate(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case v, ok := <-sub.Updates():
		if ok {
			t.Fatalf("unexpected update with %d records", len(v))
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func ids(recs []models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func assertOrdered(t *testing.T, recs []models.Recommendation) {
	t.Helper()
	for i := 1; i < len(recs); i++ {
		assert.True(t, recs[i-1].NewerThan(recs[i]), "records %d and %d out of order", i-1, i)
	}
}

func TestAppend_RoundTrip(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	c := criteria("Thriller", "Comedy")
	m := movies(7, 3)

	rec, err := s.Append(ctx, "alice", c, m)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "alice", rec.UserID)
	assert.False(t, rec.CreatedAt.IsZero())

	c.Genres[0] = "Changed"
	m[0].Duration = 1

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Thriller", "Comedy"}, got[0].Criteria.Genres)
	assert.Equal(t, movies(7, 3), got[0].Movies)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestAppend_TiesBreakByInsertOrder(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	s.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var want []string
	for range 4 {
		rec, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
		require.NoError(t, err)
		want = append([]string{rec.ID}, want...)
	}

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, ids(got))
	assertOrdered(t, got)
}

func TestAppend_TimestampsNeverGoBackwards(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.now = fixedClock(base)
	first, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)

	s.now = fixedClock(base.Add(-time.Hour))
	second, err := s.Append(ctx, "alice", criteria("Drama"), movies(2))
	require.NoError(t, err)

	assert.False(t, second.CreatedAt.Before(first.CreatedAt))
	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, ids(got))
}

func TestStore_UsersAreIsolated(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	a, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)
	_, err = s.Append(ctx, "bob", criteria("Horror"), movies(2))
	require.NoError(t, err)

	bobSub, err := s.Subscribe(ctx, "bob")
	require.NoError(t, err)
	defer bobSub.Close()
	require.Len(t, next(t, bobSub), 1)

	_, err = s.Append(ctx, "alice", criteria("Comedy"), movies(3))
	require.NoError(t, err)
	assertNoUpdate(t, bobSub)

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, ids(got), a.ID)
}

func TestSubscribe_SeesAppendFirst(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	old, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, []string{old.ID}, ids(next(t, sub)))

	rec, err := s.Append(ctx, "alice", criteria("Comedy"), movies(2))
	require.NoError(t, err)

	view := next(t, sub)
	require.Len(t, view, 2)
	assert.Equal(t, rec.ID, view[0].ID)
	assert.Equal(t, rec.Criteria, view[0].Criteria)
}

func TestSubscribe_EmptyHistory(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()

	sub, err := s.Subscribe(context.Background(), "carol")
	require.NoError(t, err)
	defer sub.Close()

	view := next(t, sub)
	assert.NotNil(t, view)
	assert.Empty(t, view)
}

func TestSubscribe_LatestSnapshotWins(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()

	for i := range 3 {
		_, err := s.Append(ctx, "alice", criteria("Drama"), movies(i))
		require.NoError(t, err)
	}

	view := next(t, sub)
	assert.Len(t, view, 3)
	assertOrdered(t, view)
	assertNoUpdate(t, sub)
}

func TestSubscribe_ViewsAreIndependent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)

	phone, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer phone.Close()
	laptop, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer laptop.Close()

	v1 := next(t, phone)
	v2 := next(t, laptop)
	v1[0].Movies[0].Title = "Changed"
	assert.Equal(t, "Movie", v2[0].Movies[0].Title)

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Movie", got[0].Movies[0].Title)
}

func TestClose_StopsDelivery(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	next(t, sub)

	sub.Close()
	sub.Close()

	_, err = s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)

	_, ok := <-sub.Updates()
	assert.False(t, ok, "updates channel is closed")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.partitions, "idle partitions are dropped")
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	keep, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)
	gone, err := s.Append(ctx, "alice", criteria("Comedy"), movies(2))
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()
	require.Len(t, next(t, sub), 2)

	require.NoError(t, s.Delete(ctx, "alice", gone.ID))
	assert.Equal(t, []string{keep.ID}, ids(next(t, sub)))

	t.Run("unknown id is a no-op", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, "alice", gone.ID))
		assert.NoError(t, s.Delete(ctx, "alice", "not-a-uuid"))
		assertNoUpdate(t, sub)
	})

	later, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer later.Close()
	assert.NotContains(t, ids(next(t, later)), gone.ID)
}

func TestDelete_ForeignRecordIsRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	rec, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)

	err = s.Delete(ctx, "mallory", rec.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.False(t, models.IsRetryable(err))

	var serr *models.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "delete", serr.Op)

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, ids(got))
}

func TestStore_RequiresUser(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "", criteria("Drama"), movies(1))
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = s.Subscribe(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.ErrorIs(t, s.Delete(ctx, "", "x"), models.ErrUnauthorized)
	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

type failingBackend struct {
	*MemoryBackend
	mu        sync.Mutex
	insertErr error
	listErr   error
}

func (f *failingBackend) Insert(ctx context.Context, rec *models.Recommendation) error {
	f.mu.Lock()
	err := f.insertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryBackend.Insert(ctx, rec)
}

func (f *failingBackend) ListByUser(ctx context.Context, userID string) ([]models.Recommendation, error) {
	f.mu.Lock()
	err := f.listErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryBackend.ListByUser(ctx, userID)
}

func TestAppend_BackendFailureLeavesNoRecord(t *testing.T) {
	t.Parallel()
	fb := &failingBackend{MemoryBackend: NewMemoryBackend()}
	s := NewStore(fb, nil, 0)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	fb.insertErr = errors.New("connection reset by peer")
	_, err = s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))
	assertNoUpdate(t, sub)

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSubscribe_BackendFailure(t *testing.T) {
	t.Parallel()
	fb := &failingBackend{MemoryBackend: NewMemoryBackend(), listErr: errors.New("timeout")}
	s := NewStore(fb, nil, 0)

	_, err := s.Subscribe(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.partitions)
}

func TestAppend_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()

	p := s.acquire("alice")
	require.NoError(t, p.lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Append(ctx, "alice", criteria("Drama"), movies(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, models.IsRetryable(err))

	p.unlock()
	s.release("alice", p)

	got, err := s.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Other users are not blocked by alice's partition.
	_, err = s.Append(context.Background(), "bob", criteria("Drama"), movies(1))
	assert.NoError(t, err)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Append(ctx, "alice", criteria("Drama"), movies(i))
			if err != nil {
				t.Error(err)
				return
			}
			if i%4 == 0 {
				if err := s.Delete(ctx, "alice", rec.ID); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, got, 15)
	assertOrdered(t, got)

	require.Eventually(t, func() bool {
		select {
		case v := <-sub.Updates():
			return len(v) == 15
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

type chanNotifier struct {
	ch chan string
}

func (n *chanNotifier) Publish(context.Context, string) error { return nil }

func (n *chanNotifier) Listen(ctx context.Context, fn func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case userID := <-n.ch:
			fn(userID)
		}
	}
}

func TestRun_RemoteChangesReachSubscribers(t *testing.T) {
	t.Parallel()
	shared := NewMemoryBackend()
	notifier := &chanNotifier{ch: make(chan string)}
	local := NewStore(shared, notifier, 0)
	remote := NewStore(shared, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- local.Run(ctx) }()

	sub, err := local.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	rec, err := remote.Append(context.Background(), "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)
	notifier.ch <- "alice"

	view := next(t, sub)
	assert.Equal(t, []string{rec.ID}, ids(view))

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_ResyncCatchesMissedChanges(t *testing.T) {
	t.Parallel()
	shared := NewMemoryBackend()
	local := NewStore(shared, nil, 10*time.Millisecond)
	remote := NewStore(shared, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = local.Run(ctx) }()

	sub, err := local.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	rec, err := remote.Append(context.Background(), "alice", criteria("Drama"), movies(1))
	require.NoError(t, err)

	assert.Equal(t, []string{rec.ID}, ids(next(t, sub)))
}

func TestInsertOrdered(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := func(id string, seq int64, created time.Time) models.Recommendation {
		return models.Recommendation{ID: id, Seq: seq, CreatedAt: created}
	}

	list := []models.Recommendation{rec("remote", 5, at), rec("old", 3, at.Add(-time.Minute))}

	got := insertOrdered(slices.Clone(list), rec("local", 4, at))
	assert.Equal(t, []string{"remote", "local", "old"}, ids(got), "equal timestamps order by seq")

	got = insertOrdered(slices.Clone(list), rec("newest", 6, at))
	assert.Equal(t, []string{"newest", "remote", "old"}, ids(got))

	got = insertOrdered(nil, rec("only", 1, at))
	assert.Equal(t, []string{"only"}, ids(got))
	assertOrdered(t, got)
}
