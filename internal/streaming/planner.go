package streaming

import (
	"sync"

	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
)

// VisibilityPlanner пересчитывает окно видимости при смене тайла под камерой
type VisibilityPlanner struct {
	radius    int
	table     *ActiveTable
	loader    *LoadScheduler
	unloader  *UnloadScheduler
	lifecycle *lifecycle
	metrics   *Metrics
	events    *eventPublisher
	log       *logging.Logger

	mu        sync.RWMutex
	center    terrain.TileCoord
	hasCenter bool
	valid     map[terrain.TileCoord]struct{}
	// deferred координаты окна, которые ещё освобождаются
	deferred map[terrain.TileCoord]struct{}
}

func newVisibilityPlanner(radius int, table *ActiveTable, loader *LoadScheduler, unloader *UnloadScheduler,
	lc *lifecycle, metrics *Metrics, events *eventPublisher, log *logging.Logger) *VisibilityPlanner {
	return &VisibilityPlanner{
		radius:    radius,
		table:     table,
		loader:    loader,
		unloader:  unloader,
		lifecycle: lc,
		metrics:   metrics,
		events:    events,
		log:       log,
		valid:     make(map[terrain.TileCoord]struct{}),
		deferred:  make(map[terrain.TileCoord]struct{}),
	}
}

// OnPositionChanged пересчитывает окно, если камера перешла в другой тайл.
// Возвращает true, если пересчёт был выполнен.
func (p *VisibilityPlanner) OnPositionChanged(pos vec.Vec3Float) bool {
	center := terrain.TileOf(pos.X, pos.Y)

	p.mu.RLock()
	same := p.hasCenter && center == p.center
	p.mu.RUnlock()
	if same {
		return false
	}

	window := p.setCenter(center)
	for _, c := range window {
		p.want(c)
	}

	p.log.Debug("🧭 Камера в тайле %s, окно %d тайлов", center, len(window))
	p.events.publish(eventbus.TypeTileChanged, eventbus.PriorityTile, tileEvent(center, nil))
	return true
}

// setCenter задаёт центр окна: вытесняет активные тайлы вне окна и чистит
// очередь от устаревших запросов. Постановка новых загрузок - на вызывающем.
func (p *VisibilityPlanner) setCenter(center terrain.TileCoord) []terrain.TileCoord {
	window := terrain.Window(center, p.radius)
	valid := make(map[terrain.TileCoord]struct{}, len(window))
	for _, c := range window {
		valid[c] = struct{}{}
	}

	p.mu.Lock()
	p.center = center
	p.hasCenter = true
	p.valid = valid
	for c := range p.deferred {
		if !c.Within(center, p.radius) {
			delete(p.deferred, c)
		}
	}
	p.mu.Unlock()

	for _, c := range p.table.Coords() {
		if !c.Within(center, p.radius) {
			p.evict(c)
		}
	}
	p.loader.Prune(func(c terrain.TileCoord) bool {
		return c.Within(center, p.radius)
	})
	return window
}

// want ставит координату окна в очередь или откладывает до освобождения
func (p *VisibilityPlanner) want(c terrain.TileCoord) {
	switch p.lifecycle.stage(c) {
	case StageUnloaded:
		p.loader.Enqueue(c)
	case StageUnloading:
		p.mu.Lock()
		p.deferred[c] = struct{}{}
		p.mu.Unlock()
	}
}

// evict убирает тайл из таблицы и передаёт его выгрузчику
func (p *VisibilityPlanner) evict(c terrain.TileCoord) bool {
	tile, ok := p.table.Remove(c)
	if !ok {
		return false
	}
	p.lifecycle.transition(c, StageActive, StageUnloading)
	p.unloader.ScheduleDispose(tile)

	p.metrics.TilesEvicted.Inc()
	p.metrics.ActiveTiles.Set(float64(p.table.Len()))
	p.events.publish(eventbus.TypeTileEvicted, eventbus.PriorityTile, tileEvent(c, nil))
	return true
}

// evictAll вытесняет все активные тайлы
func (p *VisibilityPlanner) evictAll() int {
	n := 0
	for _, c := range p.table.Coords() {
		if p.evict(c) {
			n++
		}
	}
	return n
}

// retryDeferred повторяет постановку координат, освобождение которых завершилось
func (p *VisibilityPlanner) retryDeferred() int {
	p.mu.Lock()
	ready := make([]terrain.TileCoord, 0, len(p.deferred))
	for c := range p.deferred {
		ready = append(ready, c)
	}
	p.mu.Unlock()

	enqueued := 0
	for _, c := range ready {
		if p.lifecycle.stage(c) == StageUnloading {
			continue
		}
		p.mu.Lock()
		delete(p.deferred, c)
		p.mu.Unlock()

		if p.IsValid(c) && p.loader.Enqueue(c) {
			enqueued++
		}
	}
	return enqueued
}

// IsValid сообщает, входит ли координата в текущее окно
func (p *VisibilityPlanner) IsValid(c terrain.TileCoord) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.valid[c]
	return ok
}

// ValidSet возвращает координаты текущего окна
func (p *VisibilityPlanner) ValidSet() []terrain.TileCoord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]terrain.TileCoord, 0, len(p.valid))
	for c := range p.valid {
		out = append(out, c)
	}
	return out
}

// Center текущий центр окна
func (p *VisibilityPlanner) Center() (terrain.TileCoord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.center, p.hasCenter
}

func (p *VisibilityPlanner) deferredLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.deferred)
}
