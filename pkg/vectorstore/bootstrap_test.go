package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	creates atomic.Int32
	checks  atomic.Int32
	delay   time.Duration
	failErr error
}

func (c *countingStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	c.checks.Add(1)
	if c.failErr != nil {
		return false, c.failErr
	}
	time.Sleep(c.delay)
	return c.MemoryStore.CollectionExists(ctx, name)
}

func (c *countingStore) CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	c.creates.Add(1)
	return c.MemoryStore.CreateCollection(ctx, name, dimension, metric)
}

func TestBootstrapperCreatesOnceUnderConcurrency(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(), delay: 20 * time.Millisecond}
	b := NewBootstrapper(store)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Ensure(context.Background(), "long_term_memory", 4)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.creates.Load())

	exists, err := store.MemoryStore.CollectionExists(context.Background(), "long_term_memory")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBootstrapperCachesKnownCollections(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	b := NewBootstrapper(store)

	require.NoError(t, b.Ensure(context.Background(), "m", 2))
	require.NoError(t, b.Ensure(context.Background(), "m", 2))
	assert.Equal(t, int32(1), store.checks.Load())

	b.Forget("m")
	require.NoError(t, b.Ensure(context.Background(), "m", 2))
	assert.Equal(t, int32(2), store.checks.Load())
	assert.Equal(t, int32(1), store.creates.Load())
}

func TestBootstrapperSkipsCreateForExistingCollection(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, store.MemoryStore.CreateCollection(context.Background(), "m", 2, MetricCosine))
	b := NewBootstrapper(store)

	require.NoError(t, b.Ensure(context.Background(), "m", 2))
	assert.Zero(t, store.creates.Load())
}

func TestBootstrapperPropagatesErrors(t *testing.T) {
	boom := errors.New("store down")
	store := &countingStore{MemoryStore: NewMemoryStore(), failErr: boom}
	b := NewBootstrapper(store)

	err := b.Ensure(context.Background(), "m", 2)
	assert.ErrorIs(t, err, boom)

	store.failErr = nil
	require.NoError(t, b.Ensure(context.Background(), "m", 2))
}
