package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/terrain-streamer/internal/logging"
)

// UnloadScheduler освобождает ресурсы вытесненных тайлов в фоне.
// Таблицу активных тайлов не трогает.
type UnloadScheduler struct {
	factory   RenderResourceFactory
	lifecycle *lifecycle
	metrics   *Metrics
	log       *logging.Logger
	interval  time.Duration

	mu    sync.Mutex
	tiles []*ActiveTile
}

func newUnloadScheduler(factory RenderResourceFactory, lc *lifecycle, metrics *Metrics,
	log *logging.Logger, interval time.Duration) *UnloadScheduler {
	return &UnloadScheduler{
		factory:   factory,
		lifecycle: lc,
		metrics:   metrics,
		log:       log,
		interval:  interval,
	}
}

// ScheduleDispose ставит тайл в список на освобождение
func (u *UnloadScheduler) ScheduleDispose(tile *ActiveTile) {
	u.mu.Lock()
	u.tiles = append(u.tiles, tile)
	n := len(u.tiles)
	u.mu.Unlock()

	u.metrics.PendingUnloads.Set(float64(n))
}

// Pending количество тайлов в ожидании освобождения
func (u *UnloadScheduler) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.tiles)
}

// Flush синхронно освобождает все запланированные тайлы
func (u *UnloadScheduler) Flush() int {
	u.mu.Lock()
	batch := u.tiles
	u.tiles = nil
	u.mu.Unlock()

	u.metrics.PendingUnloads.Set(0)

	disposed := 0
	for _, tile := range batch {
		released, err := tile.release(u.factory)
		if err != nil {
			u.log.Error("❌ Ошибка освобождения ресурсов тайла %s: %v", tile.Coord, err)
		}
		if !released {
			continue
		}
		disposed++
		u.metrics.TilesDisposed.Inc()
		u.lifecycle.transition(tile.Coord, StageUnloading, StageUnloaded)
	}

	if disposed > 0 {
		u.log.Debug("🗑️ Освобождено тайлов: %d", disposed)
	}
	return disposed
}

func (u *UnloadScheduler) run(ctx context.Context) error {
	u.log.Info("🗑️ Выгрузчик тайлов запущен (interval=%v)", u.interval)
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.Flush()
			u.log.Info("🗑️ Выгрузчик тайлов остановлен")
			return nil
		case <-ticker.C:
			u.Flush()
		}
	}
}
