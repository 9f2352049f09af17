package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/voiceinterview/internal/cache"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/utils"
)

type RedisOptions struct {
	Prefix   string        // key prefix, default "interview:session:"
	IdleTTL  time.Duration // expiry for sessions that never see a call end
	LockTTL  time.Duration // upper bound on one Update, default 2m
	LockWait time.Duration // how long a second event for the same call waits, default LockTTL
	Retry    time.Duration // lock poll interval, default 50ms
}

// RedisStore shares sessions between server instances. Each call's key is
// guarded by a token lock so updates from different instances serialize.
type RedisStore struct {
	cache cache.Cache
	opt   RedisOptions
	now   func() time.Time
}

func NewRedisStore(c cache.Cache, opt RedisOptions) *RedisStore {
	if opt.Prefix == "" {
		opt.Prefix = "interview:session:"
	}
	if opt.LockTTL <= 0 {
		opt.LockTTL = 2 * time.Minute
	}
	if opt.LockWait <= 0 {
		opt.LockWait = opt.LockTTL
	}
	if opt.Retry <= 0 {
		opt.Retry = 50 * time.Millisecond
	}
	return &RedisStore{cache: c, opt: opt, now: time.Now}
}

func (s *RedisStore) key(callID string) string { return s.opt.Prefix + callID }

func (s *RedisStore) GetOrCreate(ctx context.Context, callID string) (*models.Session, error) {
	return s.Update(ctx, callID, func(*models.Session) error { return nil })
}

func (s *RedisStore) Update(ctx context.Context, callID string, fn func(*models.Session) error) (*models.Session, error) {
	const op = "RedisStore.Update"

	unlock, err := s.lock(ctx, callID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, hit, err := s.load(ctx, callID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load session", err)
	}
	if !hit {
		cur = models.NewSession(callID, s.now())
		if err := s.save(ctx, cur); err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to create session", err)
		}
	}

	work := cur.Clone()
	if err := fn(work); err != nil {
		if hit {
			// renew ttl, state unchanged
			if serr := s.save(ctx, cur); serr != nil {
				return nil, errors.Join(err, utils.E(utils.CodeUnavailable, op, "failed to renew session", serr))
			}
		}
		return nil, err
	}
	if err := s.save(ctx, work); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to save session", err)
	}
	return work, nil
}

func (s *RedisStore) Get(ctx context.Context, callID string) (*models.Session, error) {
	const op = "RedisStore.Get"

	sess, hit, err := s.load(ctx, callID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load session", err)
	}
	if !hit {
		return nil, utils.ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) ScheduleDelete(ctx context.Context, callID string, after time.Duration) error {
	const op = "RedisStore.ScheduleDelete"

	unlock, err := s.lock(ctx, callID)
	if err != nil {
		return err
	}
	defer unlock()

	cur, hit, err := s.load(ctx, callID)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to load session", err)
	}
	if !hit {
		return nil
	}
	if after <= 0 {
		if err := s.cache.Del(ctx, s.key(callID)); err != nil {
			return utils.E(utils.CodeUnavailable, op, "failed to delete session", err)
		}
		return nil
	}
	cur.RetainFor = after
	if err := s.save(ctx, cur); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to save session", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return nil }

func (s *RedisStore) load(ctx context.Context, callID string) (*models.Session, bool, error) {
	var sess models.Session
	hit, err := s.cache.GetJSON(ctx, s.key(callID), &sess)
	if err != nil || !hit {
		return nil, false, err
	}
	return &sess, true, nil
}

func (s *RedisStore) save(ctx context.Context, sess *models.Session) error {
	return s.cache.SetJSON(ctx, s.key(sess.CallID), sess, ttlFor(sess, s.opt.IdleTTL))
}

// lock spins on SET NX until it owns the call's lock key. The returned
// func releases the lock only if it is still ours.
func (s *RedisStore) lock(ctx context.Context, callID string) (func(), error) {
	const op = "RedisStore.lock"

	key := s.key(callID) + ":lock"
	token := uuid.NewString()
	deadline := time.Now().Add(s.opt.LockWait)

	for {
		ok, err := s.cache.SetNX(ctx, key, token, s.opt.LockTTL)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to acquire session lock", err)
		}
		if ok {
			return func() {
				_, _ = s.cache.CompareAndDelete(context.WithoutCancel(ctx), key, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, utils.E(utils.CodeTimeout, op, "session is busy", nil)
		}

		t := time.NewTimer(s.opt.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, utils.E(utils.CodeTimeout, op, "gave up waiting for session lock", ctx.Err())
		case <-t.C:
		}
	}
}
