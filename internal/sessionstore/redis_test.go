package sessionstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/yoockh/voiceinterview/internal/cache"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/utils"
)

func newRedisStore(t *testing.T, opt RedisOptions) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(cache.NewRedisCache(rdb), opt), mr
}

func TestRedisUpdateRoundTrip(t *testing.T) {
	s, mr := newRedisStore(t, RedisOptions{IdleTTL: time.Hour})
	ctx := context.Background()

	_, err := s.Update(ctx, "c1", func(sess *models.Session) error {
		if err := sess.ApplyParams(models.InterviewParams{Role: "sre", InterviewType: "technical", Difficulty: "easy", NumQuestions: 1}); err != nil {
			return err
		}
		return sess.StartInterview([]models.Question{{Text: "What is an SLO?", Type: models.QuestionTechnical}})
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != models.StageInterviewing || got.Role != "sre" || len(got.Questions) != 1 {
		t.Fatalf("unexpected session %+v", got)
	}
	if !mr.Exists("interview:session:c1") {
		t.Fatal("session key missing")
	}
	if mr.Exists("interview:session:c1:lock") {
		t.Fatal("lock not released")
	}
}

func TestRedisFailedUpdateKeepsState(t *testing.T) {
	s, _ := newRedisStore(t, RedisOptions{IdleTTL: time.Hour})
	ctx := context.Background()

	boom := errors.New("llm down")
	if _, err := s.Update(ctx, "c1", func(sess *models.Session) error {
		sess.Role = "x"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != models.StageCollectingParams || got.Role != "" {
		t.Fatalf("unexpected session %+v", got)
	}
}

type flakyCache struct {
	cache.Cache
	failSets error
}

func (f *flakyCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	if f.failSets != nil {
		return f.failSets
	}
	return f.Cache.SetJSON(ctx, key, val, ttl)
}

func TestRedisFailedUpdateReportsRenewError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := &flakyCache{Cache: cache.NewRedisCache(rdb)}
	s := NewRedisStore(c, RedisOptions{IdleTTL: time.Hour})
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "c1"); err != nil {
		t.Fatal(err)
	}

	down := errors.New("redis down")
	c.failSets = down
	boom := errors.New("llm down")
	_, err := s.Update(ctx, "c1", func(*models.Session) error { return boom })
	if !errors.Is(err, boom) || !errors.Is(err, down) {
		t.Fatalf("err = %v", err)
	}
}

func TestRedisScheduleDeleteSetsTTL(t *testing.T) {
	s, mr := newRedisStore(t, RedisOptions{IdleTTL: time.Hour})
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := s.ScheduleDelete(ctx, "c1", 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("interview:session:c1"); ttl != 5*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	mr.FastForward(6 * time.Minute)
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRedisScheduleDeleteUnknownIsNoop(t *testing.T) {
	s, mr := newRedisStore(t, RedisOptions{})
	if err := s.ScheduleDelete(context.Background(), "ghost", time.Minute); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("interview:session:ghost") {
		t.Fatal("ScheduleDelete created a session")
	}
}

func TestRedisBusyLockTimesOut(t *testing.T) {
	s, mr := newRedisStore(t, RedisOptions{LockWait: 30 * time.Millisecond, Retry: 5 * time.Millisecond})
	if err := mr.Set("interview:session:c1:lock", "someone-else"); err != nil {
		t.Fatal(err)
	}

	_, err := s.GetOrCreate(context.Background(), "c1")
	if !utils.IsCode(err, utils.CodeTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestRedisConcurrentUpdatesSerialize(t *testing.T) {
	s, _ := newRedisStore(t, RedisOptions{IdleTTL: time.Hour, Retry: time.Millisecond})
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Update(ctx, "c1", func(sess *models.Session) error {
				sess.NumQuestions++
				return nil
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.NumQuestions != n {
		t.Fatalf("lost updates: %d != %d", got.NumQuestions, n)
	}
}
