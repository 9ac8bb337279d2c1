package evalcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelearn/sagacity/internal/model"
)

// mapStore is a minimal in-memory Store for cache tests.
type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	putErr  error
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string][]byte)}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *mapStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func TestGetOrComputeCachesValue(t *testing.T) {
	cache := New(newMapStore())
	ctx := context.Background()

	var calls atomic.Int64
	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("0.75"), nil
	}

	v, err := cache.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, []byte("0.75"), v)

	v, err = cache.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, []byte("0.75"), v)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	cache := New(newMapStore())
	ctx := context.Background()

	boom := errors.New("model not loaded")
	_, err := cache.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// The key stays computable after a failed attempt.
	v, err := cache.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), v)
}

func TestGetOrComputeStoreErrorsFailClosed(t *testing.T) {
	store := newMapStore()
	cache := New(store)
	ctx := context.Background()

	store.getErr = errors.New("connection refused")
	_, err := cache.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return []byte("never cached"), nil
	})
	assert.ErrorIs(t, err, store.getErr)

	store.getErr = nil
	store.putErr = errors.New("disk full")
	_, err = cache.GetOrCompute(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return []byte("value"), nil
	})
	assert.ErrorIs(t, err, store.putErr)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	cache := New(newMapStore())
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([][]byte, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrCompute(ctx, "hot", compute)
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("shared"), results[i])
	}
	// All concurrent callers shared at most a handful of computations;
	// callers arriving after the flight completes hit the store instead.
	assert.LessOrEqual(t, calls.Load(), int64(workers/2))
}

func TestInvalidateForcesRecompute(t *testing.T) {
	cache := New(newMapStore())
	ctx := context.Background()

	var calls atomic.Int64
	compute := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("v"), nil
	}

	_, err := cache.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "k"))
	_, err = cache.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCriterionKeySensitivity(t *testing.T) {
	base := CriterionKey("some text", "min_words", 1, "v1:abc")

	assert.Equal(t, base, CriterionKey("some text", "min_words", 1, "v1:abc"))
	assert.NotEqual(t, base, CriterionKey("other text", "min_words", 1, "v1:abc"))
	assert.NotEqual(t, base, CriterionKey("some text", "min_chars", 1, "v1:abc"))
	assert.NotEqual(t, base, CriterionKey("some text", "min_words", 2, "v1:abc"))
	assert.NotEqual(t, base, CriterionKey("some text", "min_words", 1, "v1:def"))
}

func TestCriterionKeyNoFieldBleed(t *testing.T) {
	// Length prefixes keep adjacent fields from shifting into each other.
	a := CriterionKey("ab", "c", 1, "")
	b := CriterionKey("a", "bc", 1, "")
	assert.NotEqual(t, a, b)
}

func TestProfileKey(t *testing.T) {
	rulesID := uuid.New()
	bindings := []model.UsesCriterion{
		{CriterionName: "min_words", CriterionVersion: 1, RulesID: rulesID, Weight: 1},
	}
	hashes := map[string]string{rulesID.String(): "v1:abc"}

	base := ProfileKey("text", bindings, hashes)
	assert.Equal(t, base, ProfileKey("text", bindings, hashes))

	reweighted := []model.UsesCriterion{
		{CriterionName: "min_words", CriterionVersion: 1, RulesID: rulesID, Weight: 2},
	}
	assert.NotEqual(t, base, ProfileKey("text", reweighted, hashes))
	assert.NotEqual(t, base, ProfileKey("other", bindings, hashes))
}
