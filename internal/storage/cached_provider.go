package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// CacheStats статистика кэша тайлов
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Ratio  float64
}

// CachedProvider кэширует байты тайлов поверх другого источника.
// Стоимость записи - размер данных в байтах.
type CachedProvider struct {
	inner TileSource
	cache *ristretto.Cache[string, []byte]
}

var _ TileSource = (*CachedProvider)(nil)

// NewCachedProvider создаёт кэш объёмом maxCostBytes
func NewCachedProvider(inner TileSource, maxCostBytes int64) (*CachedProvider, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10 * 4096,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кэша тайлов: %w", err)
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

func cacheKey(continent string, x, y int) string {
	return fmt.Sprintf("%s:%d:%d", continent, x, y)
}

func (c *CachedProvider) Exists(continent string, x, y int) bool {
	if _, ok := c.cache.Get(cacheKey(continent, x, y)); ok {
		return true
	}
	return c.inner.Exists(continent, x, y)
}

func (c *CachedProvider) Load(ctx context.Context, continent string, x, y int) ([]byte, error) {
	key := cacheKey(continent, x, y)
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}

	data, err := c.inner.Load(ctx, continent, x, y)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, data, int64(len(data)))
	return data, nil
}

// Invalidate убирает тайл из кэша после перезаписи
func (c *CachedProvider) Invalidate(continent string, x, y int) {
	c.cache.Del(cacheKey(continent, x, y))
}

// Wait дожидается применения отложенных записей кэша
func (c *CachedProvider) Wait() {
	c.cache.Wait()
}

func (c *CachedProvider) Stats() CacheStats {
	m := c.cache.Metrics
	return CacheStats{Hits: m.Hits(), Misses: m.Misses(), Ratio: m.Ratio()}
}

func (c *CachedProvider) Close() {
	c.cache.Close()
}
