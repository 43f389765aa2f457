package extract

import (
	"context"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/san-kum/ribbon/internal/lineart"
)

type cacheKey struct {
	frame  string
	params lineart.ExtractionParams
}

// Cache memoises extraction results per frame key and parameter set. Sets
// are never mutated after extraction so cached values are shared.
type Cache struct {
	ex   *Extractor
	sets *lru.Cache[cacheKey, lineart.Set]
}

func NewCache(ex *Extractor, size int) (*Cache, error) {
	sets, err := lru.New[cacheKey, lineart.Set](size)
	if err != nil {
		return nil, err
	}
	return &Cache{ex: ex, sets: sets}, nil
}

// Extract returns the cached set for key, extracting on a miss. An empty key
// bypasses the cache.
func (c *Cache) Extract(ctx context.Context, key string, frame image.Image, params lineart.ExtractionParams) (lineart.Set, error) {
	if key == "" {
		return c.ex.Extract(ctx, frame, params)
	}
	k := cacheKey{frame: key, params: params}
	if set, ok := c.sets.Get(k); ok {
		return set, nil
	}
	set, err := c.ex.Extract(ctx, frame, params)
	if err != nil {
		return nil, err
	}
	c.sets.Add(k, set)
	return set, nil
}

func (c *Cache) Len() int { return c.sets.Len() }

func (c *Cache) Purge() { c.sets.Purge() }
