package streaming

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/observability"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// worldState мир, для которого ставятся новые запросы
type worldState struct {
	continent  string
	generation uint64
}

// LoadScheduler очередь загрузки и фоновый загрузчик тайлов.
// Enqueue и TryTakeCompleted вызываются на переднем плане,
// run - в единственной фоновой горутине.
type LoadScheduler struct {
	provider  TileDataProvider
	lifecycle *lifecycle
	progress  *progressTracker
	metrics   *Metrics
	events    *eventPublisher
	tracer    trace.Tracer
	log       *logging.Logger

	pending   pendingQueue
	completed completedBuffer
	world     atomic.Pointer[worldState]
	wake      chan struct{}
	poll      time.Duration
}

func newLoadScheduler(provider TileDataProvider, lc *lifecycle, progress *progressTracker,
	metrics *Metrics, events *eventPublisher, tracer trace.Tracer, log *logging.Logger, poll time.Duration) *LoadScheduler {
	s := &LoadScheduler{
		provider:  provider,
		lifecycle: lc,
		progress:  progress,
		metrics:   metrics,
		events:    events,
		tracer:    tracer,
		log:       log,
		wake:      make(chan struct{}, 1),
		poll:      poll,
	}
	s.world.Store(&worldState{})
	return s
}

// setWorld задаёт мир для последующих запросов
func (s *LoadScheduler) setWorld(continent string, generation uint64) {
	s.world.Store(&worldState{continent: continent, generation: generation})
}

// Enqueue ставит координату в очередь. Повторный вызов для координаты,
// которая уже не в Unloaded, ничего не делает и возвращает false.
func (s *LoadScheduler) Enqueue(c terrain.TileCoord) bool {
	if !c.Valid() {
		return false
	}
	w := s.world.Load()
	if !s.lifecycle.claim(c, w.generation) {
		return false
	}

	s.pending.push(loadRequest{coord: c, continent: w.continent, generation: w.generation})
	s.metrics.PendingLoads.Set(float64(s.pending.len()))
	s.signal()
	return true
}

// TryTakeCompleted забирает один загруженный тайл или nil
func (s *LoadScheduler) TryTakeCompleted() *LoadedTile {
	return s.completed.pop()
}

// Prune убирает из очереди запросы, для которых keep вернул false
func (s *LoadScheduler) Prune(keep func(terrain.TileCoord) bool) int {
	removed := s.pending.removeIf(func(r loadRequest) bool { return !keep(r.coord) })
	for _, r := range removed {
		s.lifecycle.transitionOwned(r.coord, r.generation, StagePending, StageUnloaded)
		s.progress.settle(r.generation, r.coord)
	}
	if len(removed) > 0 {
		s.metrics.PendingLoads.Set(float64(s.pending.len()))
		s.log.Debug("✂️ Из очереди убрано %d устаревших запросов", len(removed))
	}
	return len(removed)
}

// reset очищает очередь и буфер при смене мира
func (s *LoadScheduler) reset() {
	s.pending.clear()
	s.completed.clear()
	s.metrics.PendingLoads.Set(0)
}

func (s *LoadScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run обрабатывает очередь до отмены ctx
func (s *LoadScheduler) run(ctx context.Context) error {
	s.log.Info("📥 Загрузчик тайлов запущен (poll=%v)", s.poll)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			s.log.Info("📥 Загрузчик тайлов остановлен")
			return nil
		}
		if s.step(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// step обрабатывает один запрос. Возвращает false при пустой очереди.
func (s *LoadScheduler) step(ctx context.Context) bool {
	req, ok := s.pending.pop()
	if !ok {
		return false
	}
	s.metrics.PendingLoads.Set(float64(s.pending.len()))

	// Запрос прежнего мира: координатой уже владеет новое поколение
	if req.generation != s.world.Load().generation {
		s.metrics.StaleDropped.Inc()
		return true
	}
	if !s.lifecycle.transitionOwned(req.coord, req.generation, StagePending, StageLoading) {
		return true
	}

	ctx, span := s.tracer.Start(ctx, "tile.load",
		trace.WithAttributes(observability.TileAttributes(req.continent, req.coord.X, req.coord.Y)...))
	defer span.End()

	start := time.Now()
	raw, err := s.fetch(ctx, req)
	if err != nil {
		s.lifecycle.transitionOwned(req.coord, req.generation, StageLoading, StageUnloaded)
		s.progress.settle(req.generation, req.coord)
		s.metrics.LoadFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn("⚠️ Тайл %s не загружен: %v", req.coord, err)
		s.events.publish(eventbus.TypeTileLoadFailed, eventbus.PriorityTile, tileEvent(req.coord, err))
		return true
	}
	s.metrics.LoadDuration.Observe(time.Since(start).Seconds())

	if !s.lifecycle.transitionOwned(req.coord, req.generation, StageLoading, StageLoaded) {
		s.log.Debug("Тайл %s загружен для сброшенного мира, отброшен", req.coord)
		return true
	}
	s.completed.push(&LoadedTile{Raw: raw, Generation: req.generation})
	s.metrics.TilesLoaded.Inc()
	s.log.Trace("Тайл %s загружен за %v", req.coord, time.Since(start))
	return true
}

func (s *LoadScheduler) fetch(ctx context.Context, req loadRequest) (*terrain.RawTile, error) {
	c := req.coord
	if !s.provider.Exists(req.continent, c.X, c.Y) {
		return nil, fmt.Errorf("%w: тайл %s/%s отсутствует", ErrTransientLoad, req.continent, c)
	}

	data, err := s.provider.Load(ctx, req.continent, c.X, c.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение %s/%s: %w", ErrTransientLoad, req.continent, c, err)
	}

	raw, err := terrain.Decode(data, func() { s.progress.step(req.generation, c, 1) })
	if err != nil {
		return nil, fmt.Errorf("%w: декодирование %s/%s: %w", ErrTransientLoad, req.continent, c, err)
	}
	if raw.Coord != c {
		return nil, fmt.Errorf("%w: %w: ожидался %s, в данных %s", ErrTransientLoad, terrain.ErrCorruptTile, c, raw.Coord)
	}
	return raw, nil
}
