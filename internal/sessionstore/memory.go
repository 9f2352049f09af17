package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/utils"
)

// MemoryStore keeps sessions in process memory. It is only correct for a
// single server instance; use RedisStore when running more than one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	idleTTL time.Duration
	now     func() time.Time
}

// Lock order is entry.sem before MemoryStore.mu.
type memEntry struct {
	sem  chan struct{} // one slot; held for the whole of an Update
	gone bool          // guarded by sem

	// written with both locks held, so either lock is enough to read
	sess *models.Session

	// guarded by MemoryStore.mu
	timer     *time.Timer
	expiresAt time.Time
}

// NewMemoryStore returns an empty store. idleTTL bounds the life of
// sessions whose call never reports an end; zero keeps them forever.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, callID string) (*models.Session, error) {
	return s.Update(ctx, callID, func(*models.Session) error { return nil })
}

func (s *MemoryStore) Update(ctx context.Context, callID string, fn func(*models.Session) error) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.E(utils.CodeTimeout, "MemoryStore.Update", "context done", err)
	}

	e, err := s.acquire(ctx, callID)
	if err != nil {
		return nil, utils.E(utils.CodeTimeout, "MemoryStore.Update", "gave up waiting for session", err)
	}
	defer e.unlock()

	work := e.sess.Clone()
	if err := fn(work); err != nil {
		s.commit(callID, e, e.sess)
		return nil, err
	}
	s.commit(callID, e, work)
	return work.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, callID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[callID]
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, utils.ErrNotFound
	}
	return e.sess.Clone(), nil
}

func (s *MemoryStore) ScheduleDelete(ctx context.Context, callID string, after time.Duration) error {
	s.mu.Lock()
	e, ok := s.entries[callID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := e.lock(ctx); err != nil {
		return utils.E(utils.CodeTimeout, "MemoryStore.ScheduleDelete", "gave up waiting for session", err)
	}
	defer e.unlock()
	if e.gone {
		return nil
	}
	if after <= 0 {
		s.mu.Lock()
		s.removeLocked(callID, e)
		s.mu.Unlock()
		return nil
	}

	work := e.sess.Clone()
	work.RetainFor = after
	s.commit(callID, e, work)
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.entries = make(map[string]*memEntry)
	return nil
}

func newMemEntry(sess *models.Session) *memEntry {
	return &memEntry{sem: make(chan struct{}, 1), sess: sess}
}

// lock waits for the entry until ctx is done.
func (e *memEntry) lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *memEntry) unlock() { <-e.sem }

// acquire returns the call's entry locked, creating it when needed. An
// entry that expired while we waited for it is skipped.
func (s *MemoryStore) acquire(ctx context.Context, callID string) (*memEntry, error) {
	for {
		s.mu.Lock()
		e, ok := s.entries[callID]
		if !ok {
			e = newMemEntry(models.NewSession(callID, s.now()))
			s.entries[callID] = e
		}
		s.mu.Unlock()

		if err := e.lock(ctx); err != nil {
			return nil, err
		}
		if !e.gone {
			return e, nil
		}
		e.unlock()
	}
}

// commit stores sess and pushes the expiry deadline out. Caller holds e.sem.
func (s *MemoryStore) commit(callID string, e *memEntry, sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.sess = sess
	ttl := ttlFor(sess, s.idleTTL)
	if ttl <= 0 {
		return
	}
	e.expiresAt = s.now().Add(ttl)
	if e.timer == nil {
		e.timer = time.AfterFunc(ttl, func() { s.expire(callID, e) })
		return
	}
	e.timer.Reset(ttl)
}

func (s *MemoryStore) expire(callID string, e *memEntry) {
	_ = e.lock(context.Background())
	defer e.unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.gone {
		return
	}
	if wait := e.expiresAt.Sub(s.now()); wait > 0 {
		e.timer.Reset(wait)
		return
	}
	s.removeLocked(callID, e)
}

// removeLocked needs both locks held.
func (s *MemoryStore) removeLocked(callID string, e *memEntry) {
	if s.entries[callID] == e {
		delete(s.entries, callID)
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gone = true
}
