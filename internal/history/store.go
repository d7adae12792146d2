package history

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"movie-discovery-recommender/internal/metrics"
	"movie-discovery-recommender/internal/models"
)

const publishTimeout = 2 * time.Second

// Store serializes writes per user and keeps live subscribers up to date.
// Unrelated users never wait on each other.
type Store struct {
	backend  Backend
	notifier Notifier
	resync   time.Duration
	now      func() time.Time

	mu         sync.Mutex
	partitions map[string]*partition
}

// partition is one user's slice of the store. refs is guarded by Store.mu;
// subs and records are guarded by sem.
type partition struct {
	sem  chan struct{}
	refs int

	subs    map[*Subscription]struct{}
	records []models.Recommendation
}

// NewStore creates a store over backend. notifier may be nil for a single
// instance; resync <= 0 disables the periodic refresh of subscribed users.
func NewStore(backend Backend, notifier Notifier, resync time.Duration) *Store {
	return &Store{
		backend:    backend,
		notifier:   notifier,
		resync:     resync,
		now:        time.Now,
		partitions: make(map[string]*partition),
	}
}

// Append saves a new recommendation for userID and returns it with its
// assigned id and timestamp.
func (s *Store) Append(ctx context.Context, userID string, criteria models.PreferenceCriteria, movies []models.Movie) (rec models.Recommendation, err error) {
	defer func() { metrics.RecordHistoryOp("append", err) }()

	if userID == "" {
		return models.Recommendation{}, models.NewStoreError("append", models.ErrUnauthorized)
	}

	rec = models.Recommendation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Criteria:  criteria.Clone(),
		Movies:    models.CloneMovies(movies),
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if rec.Movies == nil {
		rec.Movies = []models.Movie{}
	}

	p := s.acquire(userID)
	defer s.release(userID, p)

	if err := p.lock(ctx); err != nil {
		return models.Recommendation{}, models.NewStoreError("append", err)
	}
	if err := s.backend.Insert(ctx, &rec); err != nil {
		p.unlock()
		return models.Recommendation{}, models.NewStoreError("append", err)
	}
	if len(p.subs) > 0 {
		p.records = insertOrdered(p.records, rec.Clone())
		p.broadcast()
	}
	p.unlock()

	s.publish(ctx, userID)
	slog.Debug("recommendation saved", "user_id", userID, "id", rec.ID, "movies", len(rec.Movies))
	return rec.Clone(), nil
}

// List returns userID's history, newest first.
func (s *Store) List(ctx context.Context, userID string) (recs []models.Recommendation, err error) {
	defer func() { metrics.RecordHistoryOp("list", err) }()

	if userID == "" {
		return nil, models.NewStoreError("list", models.ErrUnauthorized)
	}
	recs, err = s.backend.ListByUser(ctx, userID)
	if err != nil {
		return nil, models.NewStoreError("list", err)
	}
	return recs, nil
}

// Delete removes one of userID's records. An unknown id is a successful
// no-op; a record owned by someone else is rejected and left untouched.
func (s *Store) Delete(ctx context.Context, userID, id string) (err error) {
	defer func() { metrics.RecordHistoryOp("delete", err) }()

	if userID == "" {
		return models.NewStoreError("delete", models.ErrUnauthorized)
	}

	p := s.acquire(userID)
	defer s.release(userID, p)

	if err := p.lock(ctx); err != nil {
		return models.NewStoreError("delete", err)
	}

	err = s.backend.Delete(ctx, userID, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		p.unlock()
		return nil
	case errors.Is(err, models.ErrForbidden):
		p.unlock()
		slog.Warn("rejected delete of foreign recommendation", "user_id", userID, "id", id)
		return models.NewStoreError("delete", err)
	case err != nil:
		p.unlock()
		return models.NewStoreError("delete", err)
	}

	if len(p.subs) > 0 {
		p.records = slices.DeleteFunc(p.records, func(r models.Recommendation) bool { return r.ID == id })
		p.broadcast()
	}
	p.unlock()

	s.publish(ctx, userID)
	return nil
}

// Subscribe opens a live view of userID's history. The current list is
// available on Updates immediately; every later change replaces any value
// the subscriber has not read yet. Call Close to stop.
func (s *Store) Subscribe(ctx context.Context, userID string) (sub *Subscription, err error) {
	defer func() { metrics.RecordHistoryOp("subscribe", err) }()

	if userID == "" {
		return nil, models.NewStoreError("subscribe", models.ErrUnauthorized)
	}

	p := s.acquire(userID)
	if err := p.lock(ctx); err != nil {
		s.release(userID, p)
		return nil, models.NewStoreError("subscribe", err)
	}

	if len(p.subs) == 0 {
		recs, err := s.backend.ListByUser(ctx, userID)
		if err != nil {
			p.unlock()
			s.release(userID, p)
			return nil, models.NewStoreError("subscribe", err)
		}
		p.records = recs
	}

	sub = &Subscription{
		store:   s,
		userID:  userID,
		p:       p,
		updates: make(chan []models.Recommendation, 1),
	}
	p.subs[sub] = struct{}{}
	sub.offer(cloneAll(p.records))
	p.unlock()

	metrics.HistorySubscribers.Inc()
	return sub, nil
}

// Run listens for changes made by other instances and periodically reloads
// subscribed users until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.notifier != nil {
		g.Go(func() error {
			for {
				err := s.notifier.Listen(gctx, func(userID string) { s.refresh(gctx, userID) })
				if gctx.Err() != nil {
					return nil
				}
				slog.Error("history change listener stopped, reconnecting", "error", err)
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(2 * time.Second):
				}
				s.resyncAll(gctx)
			}
		})
	}

	if s.resync > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(s.resync)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.resyncAll(gctx)
				}
			}
		})
	}

	return g.Wait()
}

func (s *Store) resyncAll(ctx context.Context) {
	s.mu.Lock()
	users := make([]string, 0, len(s.partitions))
	for userID := range s.partitions {
		users = append(users, userID)
	}
	s.mu.Unlock()

	for _, userID := range users {
		s.refresh(ctx, userID)
	}
}

// refresh reloads a subscribed user's list from the backend and notifies
// subscribers if it differs from what they last saw.
func (s *Store) refresh(ctx context.Context, userID string) {
	s.mu.Lock()
	p, ok := s.partitions[userID]
	if ok {
		p.refs++
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	defer s.release(userID, p)

	if err := p.lock(ctx); err != nil {
		return
	}
	defer p.unlock()

	if len(p.subs) == 0 {
		return
	}
	recs, err := s.backend.ListByUser(ctx, userID)
	if err != nil {
		slog.Warn("history resync failed", "user_id", userID, "error", err)
		return
	}
	if sameView(p.records, recs) {
		return
	}
	p.records = recs
	p.broadcast()
}

func (s *Store) publish(ctx context.Context, userID string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, userID); err != nil {
		slog.Warn("failed to publish history change", "user_id", userID, "error", err)
	}
}

func (s *Store) acquire(userID string) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[userID]
	if !ok {
		p = &partition{
			sem:  make(chan struct{}, 1),
			subs: make(map[*Subscription]struct{}),
		}
		s.partitions[userID] = p
		metrics.HistoryPartitions.Inc()
	}
	p.refs++
	return p
}

func (s *Store) release(userID string, p *partition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.refs--
	if p.refs == 0 {
		delete(s.partitions, userID)
		metrics.HistoryPartitions.Dec()
	}
}

func (p *partition) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *partition) unlock() { <-p.sem }

func (p *partition) broadcast() {
	for sub := range p.subs {
		sub.offer(cloneAll(p.records))
	}
}

// insertOrdered places rec in the newest-first list. A record another
// instance wrote concurrently may already be in recs with a later seq.
func insertOrdered(recs []models.Recommendation, rec models.Recommendation) []models.Recommendation {
	i := slices.IndexFunc(recs, rec.NewerThan)
	if i < 0 {
		i = len(recs)
	}
	return slices.Insert(recs, i, rec)
}

func sameView(a, b []models.Recommendation) bool {
	return slices.EqualFunc(a, b, func(x, y models.Recommendation) bool {
		return x.ID == y.ID && x.Seq == y.Seq
	})
}

// Subscription is a live view of one user's history.
type Subscription struct {
	store   *Store
	userID  string
	p       *partition
	updates chan []models.Recommendation
	once    sync.Once
}

// Updates delivers the newest-first list after every change. It is closed
// by Close.
func (sub *Subscription) Updates() <-chan []models.Recommendation {
	return sub.updates
}

// Close stops delivery. It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		p := sub.p
		p.sem <- struct{}{}
		delete(p.subs, sub)
		if len(p.subs) == 0 {
			p.records = nil
		}
		close(sub.updates)
		p.unlock()

		sub.store.release(sub.userID, p)
		metrics.HistorySubscribers.Dec()
	})
}

// offer replaces any unread value with v. Callers hold the partition lock,
// so there is a single sender.
func (sub *Subscription) offer(v []models.Recommendation) {
	select {
	case sub.updates <- v:
		return
	default:
	}
	select {
	case <-sub.updates:
	default:
	}
	select {
	case sub.updates <- v:
	default:
	}
}
