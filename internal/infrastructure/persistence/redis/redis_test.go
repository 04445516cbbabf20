package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/gamification"
	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/domain/verification"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/memory"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// fakeKV mimics Cache with JSON round-trips and recorded TTLs.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	gets    int
	failGet error
	failSet error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return f.failSet
	}
	f.data[key] = b
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return f.failGet
	}
	b, ok := f.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (f *fakeKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeKV) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	_, exists := f.data[key]
	f.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, f.Set(ctx, key, value, ttl)
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// countingStats counts Get calls on the wrapped store.
type countingStats struct {
	gamification.StatsRepository
	gets int
}

func (c *countingStats) Get(ctx context.Context, userID shared.UserID) (*gamification.UserStats, error) {
	c.gets++
	return c.StatsRepository.Get(ctx, userID)
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestKeys(t *testing.T) {
	assert.Equal(t, "grithabit:stats:u1", StatsKey("u1"))
	assert.Equal(t, "grithabit:verification:a@b.co", VerificationKey("a@b.co"))
	assert.Equal(t, "grithabit:lock:recompute_stats", LockKey("recompute_stats"))
}

func TestConfigOptions(t *testing.T) {
	opts, err := Config{URL: "redis://:secret@cache:6380/2", PoolSize: 7}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = Config{Addr: "localhost:6379", DB: 1}.Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = Config{URL: "http://nope"}.Options()
	assert.Error(t, err)
}

func TestCachedStats_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := &countingStats{StatsRepository: memory.NewStatsRepository()}
	kv := newFakeKV()
	repo := NewCachedStatsRepository(store, kv, time.Minute, nil)

	s := gamification.NewUserStats("u1", now)
	s.AddXP(120)
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 120, got.TotalXP)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, time.Minute, kv.ttls[StatsKey("u1")])

	got, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 120, got.TotalXP)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 1, store.gets, "second read is served from cache")
}

func TestCachedStats_SaveInvalidates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsRepository()
	kv := newFakeKV()
	repo := NewCachedStatsRepository(store, kv, 0, nil)

	require.NoError(t, repo.Create(ctx, gamification.NewUserStats("u1", now)))
	s, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, kv.has(StatsKey("u1")))

	s.AddXP(50)
	require.NoError(t, repo.Save(ctx, s))
	assert.False(t, kv.has(StatsKey("u1")))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.TotalXP)
	assert.Equal(t, s.Version, got.Version)
}

func TestCachedStats_StaleSaveStillInvalidates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsRepository()
	kv := newFakeKV()
	repo := NewCachedStatsRepository(store, kv, 0, nil)

	require.NoError(t, repo.Create(ctx, gamification.NewUserStats("u1", now)))
	first, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	second := first.Clone()

	require.NoError(t, repo.Save(ctx, first))
	_, err = repo.Get(ctx, "u1")
	require.NoError(t, err)

	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, shared.ErrStatsVersionStale)
	assert.False(t, kv.has(StatsKey("u1")))
}

func TestCachedStats_CacheErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsRepository()
	kv := newFakeKV()
	kv.failGet = errors.New("connection reset")
	repo := NewCachedStatsRepository(store, kv, 0, nil)

	require.NoError(t, store.Create(ctx, gamification.NewUserStats("u1", now)))
	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, shared.UserID("u1"), got.UserID)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestCachedStats_BreakerSkipsUnreachableCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsRepository()
	kv := newFakeKV()
	kv.failGet = errors.New("connection refused")
	kv.failSet = errors.New("connection refused")
	repo := NewCachedStatsRepository(store, kv, 0, nil)

	require.NoError(t, store.Create(ctx, gamification.NewUserStats("u1", now)))
	for i := 0; i < 5; i++ {
		_, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
	}

	// three failed reads and fills trip the breaker on the second Get
	assert.Equal(t, 2, kv.gets)
}

func TestCachedStats_Invalidate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStatsRepository()
	kv := newFakeKV()
	repo := NewCachedStatsRepository(store, kv, 0, nil)

	require.NoError(t, store.Create(ctx, gamification.NewUserStats("u1", now)))
	_, err := repo.Get(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, repo.Invalidate(ctx, "u1"))
	assert.False(t, kv.has(StatsKey("u1")))
}

func TestVerificationStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	clock := &timeutil.FixedClock{T: now}
	store := NewVerificationStore(kv, clock)

	p := &verification.Pending{
		Email:     "a@b.co",
		FullName:  "Ann",
		PINHash:   []byte("hash"),
		ExpiresAt: now.Add(verification.DefaultTTL),
	}
	require.NoError(t, store.Put(ctx, p))
	assert.Equal(t, verification.DefaultTTL+verification.ExpiredGrace, kv.ttls[VerificationKey("a@b.co")])

	got, err := store.Get(ctx, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FullName)
	assert.Equal(t, []byte("hash"), got.PINHash)
	assert.True(t, got.ExpiresAt.Equal(p.ExpiresAt))

	require.NoError(t, store.Delete(ctx, "a@b.co"))
	_, err = store.Get(ctx, "a@b.co")
	assert.ErrorIs(t, err, shared.ErrVerificationNotFound)
}

func TestVerificationStore_ExpiredEntry(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	clock := &timeutil.FixedClock{T: now}
	store := NewVerificationStore(kv, clock)

	require.NoError(t, store.Put(ctx, &verification.Pending{
		Email:     "a@b.co",
		ExpiresAt: now.Add(time.Minute),
	}))

	clock.T = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, "a@b.co")
	assert.ErrorIs(t, err, shared.ErrVerificationExpired)
	assert.False(t, kv.has(VerificationKey("a@b.co")))

	_, err = store.Get(ctx, "a@b.co")
	assert.ErrorIs(t, err, shared.ErrVerificationNotFound)
}

func TestVerificationStore_PutPastGrace(t *testing.T) {
	store := NewVerificationStore(newFakeKV(), timeutil.FixedClock{T: now})
	err := store.Put(context.Background(), &verification.Pending{
		Email:     "a@b.co",
		ExpiresAt: now.Add(-verification.ExpiredGrace),
	})
	assert.ErrorIs(t, err, shared.ErrVerificationExpired)
}

// TestLocker_Integration runs against a live server when
// GRITHABIT_TEST_REDIS_URL is set.
func TestLocker_Integration(t *testing.T) {
	url := os.Getenv("GRITHABIT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GRITHABIT_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, Config{URL: url})
	require.NoError(t, err)
	cache := NewCache(client)
	defer cache.Close()

	locker := NewLocker(cache)
	release, ok, err := locker.TryLock(ctx, "test-job", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "test-job", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release2, ok, err := locker.TryLock(ctx, "test-job", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}
