package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Bootstrapper lazily creates collections on first write. Concurrent callers
// for the same collection share one exists-then-create round trip, and known
// collections are cached so steady-state writes skip the check entirely.
type Bootstrapper struct {
	store Store
	known *cache.Cache
	group singleflight.Group
}

func NewBootstrapper(store Store) *Bootstrapper {
	return &Bootstrapper{
		store: store,
		known: cache.New(10*time.Minute, 20*time.Minute),
	}
}

// Ensure makes sure the collection exists with the given dimension and a
// cosine metric.
func (b *Bootstrapper) Ensure(ctx context.Context, name string, dimension int) error {
	if _, found := b.known.Get(name); found {
		return nil
	}

	_, err, _ := b.group.Do(name, func() (interface{}, error) {
		exists, err := b.store.CollectionExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check collection %s: %w", name, err)
		}
		if !exists {
			if err := b.store.CreateCollection(ctx, name, dimension, MetricCosine); err != nil {
				return nil, fmt.Errorf("create collection %s: %w", name, err)
			}
		}
		b.known.Set(name, dimension, cache.DefaultExpiration)
		return nil, nil
	})
	return err
}

// Forget drops the cached knowledge of a collection, e.g. after a write
// failed with ErrCollectionNotFound because it was removed out of band.
func (b *Bootstrapper) Forget(name string) {
	b.known.Delete(name)
}
