package streaming

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/terrain-streamer/internal/config"
	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/observability"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// entryLift высота камеры над землёй в точке входа
const entryLift = 50.0

// Options параметры подкачки
type Options struct {
	Radius                int
	LoadPollInterval      time.Duration
	UnloadInterval        time.Duration
	AmbientInterval       time.Duration
	MaxPromotionsPerFrame int
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{
		Radius:                2,
		LoadPollInterval:      30 * time.Millisecond,
		UnloadInterval:        500 * time.Millisecond,
		AmbientInterval:       100 * time.Millisecond,
		MaxPromotionsPerFrame: 1,
	}
}

// OptionsFromConfig читает параметры из секции streaming конфигурации
func OptionsFromConfig(cfg *config.StreamingConfig) Options {
	return Options{
		Radius:                cfg.GetRadius(),
		LoadPollInterval:      cfg.LoadPollInterval(),
		UnloadInterval:        cfg.UnloadInterval(),
		AmbientInterval:       cfg.AmbientInterval(),
		MaxPromotionsPerFrame: cfg.GetMaxPromotionsPerFrame(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.LoadPollInterval <= 0 {
		o.LoadPollInterval = d.LoadPollInterval
	}
	if o.UnloadInterval <= 0 {
		o.UnloadInterval = d.UnloadInterval
	}
	if o.AmbientInterval <= 0 {
		o.AmbientInterval = d.AmbientInterval
	}
	if o.MaxPromotionsPerFrame <= 0 {
		o.MaxPromotionsPerFrame = d.MaxPromotionsPerFrame
	}
	return o
}

// Dependencies внешние зависимости менеджера. Provider и Factory обязательны.
type Dependencies struct {
	Provider   TileDataProvider
	Factory    RenderResourceFactory
	Progress   ProgressSink
	Ambient    AmbientRefresher
	Bus        eventbus.EventBus
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
	Logger     *logging.Logger
}

// Stats снимок состояния подкачки
type Stats struct {
	Generation     uint64
	Active         int
	PendingLoads   int
	Completed      int
	PendingUnloads int
	Deferred       int
	Stages         map[Stage]int
	Progress       float64
	InitialLoad    bool
}

// Manager связывает компоненты подкачки ландшафта.
// EnterWorld, OnPositionChanged и OnFrame вызываются только с переднего плана.
type Manager struct {
	opts      Options
	provider  TileDataProvider
	factory   RenderResourceFactory
	ambient   AmbientRefresher
	metrics   *Metrics
	tracer    trace.Tracer
	log       *logging.Logger
	events    *eventPublisher
	lifecycle *lifecycle
	progress  *progressTracker

	table    *ActiveTable
	loader   *LoadScheduler
	unloader *UnloadScheduler
	planner  *VisibilityPlanner
	query    *TerrainQuery

	generation atomic.Uint64

	mu        sync.RWMutex
	session   string
	continent string
	entry     vec.Vec3Float
	entered   bool

	runMu   sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// NewManager создаёт менеджер. Фоновые горутины запускаются через Start.
func NewManager(opts Options, deps Dependencies) (*Manager, error) {
	if deps.Provider == nil {
		return nil, errors.New("не задан источник данных тайлов")
	}
	if deps.Factory == nil {
		return nil, errors.New("не задана фабрика ресурсов отрисовки")
	}

	opts = opts.withDefaults()
	log := deps.Logger
	if log == nil {
		log = logging.NewConsoleLogger("streaming", logging.WARN)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}

	m := &Manager{
		opts:      opts,
		provider:  deps.Provider,
		factory:   deps.Factory,
		ambient:   deps.Ambient,
		metrics:   NewMetrics(deps.Registerer),
		tracer:    tracer,
		log:       log,
		lifecycle: newLifecycle(),
		progress:  newProgressTracker(deps.Progress),
		table:     NewActiveTable(),
	}
	m.events = &eventPublisher{bus: deps.Bus, session: m.SessionID, log: log}
	m.loader = newLoadScheduler(m.provider, m.lifecycle, m.progress, m.metrics, m.events, tracer, log, opts.LoadPollInterval)
	m.unloader = newUnloadScheduler(m.factory, m.lifecycle, m.metrics, log, opts.UnloadInterval)
	m.planner = newVisibilityPlanner(opts.Radius, m.table, m.loader, m.unloader, m.lifecycle, m.metrics, m.events, log)
	m.query = NewTerrainQuery(m.table)
	return m, nil
}

// Start запускает загрузчик, выгрузчик и обновление окружения
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.loader.run(gctx) })
	g.Go(func() error { return m.unloader.run(gctx) })
	if m.ambient != nil {
		g.Go(func() error { return m.runAmbient(gctx) })
	}

	m.cancel = cancel
	m.group = g
	m.running = true
	m.log.Info("🚀 Подкачка ландшафта запущена (radius=%d)", m.opts.Radius)
	return nil
}

// Shutdown останавливает фоновые горутины и освобождает все активные тайлы
func (m *Manager) Shutdown() error {
	m.runMu.Lock()
	var err error
	if m.running {
		m.cancel()
		err = m.group.Wait()
		m.running = false
	}
	m.runMu.Unlock()

	evicted := m.planner.evictAll()
	m.unloader.Flush()
	m.log.Info("🛑 Подкачка ландшафта остановлена, освобождено тайлов: %d", evicted)
	return err
}

func (m *Manager) runAmbient(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.AmbientInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.ambient.AsyncUpdate()
		}
	}
}

// EnterWorld сбрасывает состояние и начинает начальную загрузку окна вокруг
// точки входа. Возвращает идентификатор сессии мира.
func (m *Manager) EnterWorld(continent string, entry vec.Vec2Float) string {
	gen := m.generation.Add(1)
	session := uuid.NewString()

	m.mu.Lock()
	m.session = session
	m.continent = continent
	m.entry = vec.Vec3Float{X: entry.X, Y: entry.Y}
	m.entered = false
	m.mu.Unlock()

	m.loader.setWorld(continent, gen)
	m.loader.reset()
	m.planner.evictAll()
	m.lifecycle.resetExcept(StageUnloading)

	center := terrain.TileOf(entry.X, entry.Y)
	window := m.planner.setCenter(center)

	tracked := make([]terrain.TileCoord, 0, len(window))
	for _, c := range window {
		if m.provider.Exists(continent, c.X, c.Y) {
			tracked = append(tracked, c)
		}
	}

	m.progress.begin(gen, tracked)
	for _, c := range tracked {
		m.planner.want(c)
	}

	m.log.Info("🌍 Вход в мир %s в тайле %s: %d из %d тайлов окна (session=%s)",
		continent, center, len(tracked), len(window), session)
	return session
}

// OnPositionChanged передаёт позицию камеры планировщику видимости
func (m *Manager) OnPositionChanged(pos vec.Vec3Float) {
	m.planner.OnPositionChanged(pos)
}

// OnFrame продвигает загруженные тайлы в таблицу и завершает начальную загрузку
func (m *Manager) OnFrame() {
	for i := 0; i < m.opts.MaxPromotionsPerFrame; i++ {
		lt := m.loader.TryTakeCompleted()
		if lt == nil {
			break
		}
		m.promote(lt)
	}

	m.planner.retryDeferred()

	if m.progress.takeFinished() {
		m.finishInitialLoad()
	}
}

func (m *Manager) promote(lt *LoadedTile) {
	c := lt.Raw.Coord
	if lt.Generation != m.generation.Load() {
		// Запись сбрасывается, только если она всё ещё принадлежит прежнему миру
		m.lifecycle.transitionOwned(c, lt.Generation, StageLoaded, StageUnloaded)
		m.metrics.StaleDropped.Inc()
		return
	}

	if !m.planner.IsValid(c) {
		m.lifecycle.transitionOwned(c, lt.Generation, StageLoaded, StageUnloaded)
		m.progress.settle(lt.Generation, c)
		m.metrics.StaleDropped.Inc()
		m.log.Debug("Тайл %s вне окна, отброшен", c)
		return
	}

	_, span := m.tracer.Start(context.Background(), "tile.promote",
		trace.WithAttributes(observability.TileAttributes(m.Continent(), c.X, c.Y)...))
	defer span.End()

	res, err := m.factory.Upload(lt.Raw)
	if err != nil {
		span.RecordError(err)
		m.lifecycle.transitionOwned(c, lt.Generation, StageLoaded, StageUnloaded)
		m.progress.settle(lt.Generation, c)
		m.log.Error("❌ Не удалось создать ресурсы тайла %s: %v", c, err)
		m.events.publish(eventbus.TypeTileLoadFailed, eventbus.PriorityTile, tileEvent(c, err))
		return
	}

	tile := newActiveTile(lt, res)
	if err := m.table.Insert(c, tile); err != nil {
		m.log.Error("❌ %v", err)
		if _, rerr := tile.release(m.factory); rerr != nil {
			m.log.Error("❌ Ошибка освобождения ресурсов тайла %s: %v", c, rerr)
		}
		m.lifecycle.transitionOwned(c, lt.Generation, StageLoaded, StageUnloaded)
		m.progress.settle(lt.Generation, c)
		return
	}
	m.lifecycle.transitionOwned(c, lt.Generation, StageLoaded, StageActive)
	m.progress.step(lt.Generation, c, terrain.ChunksPerTile)

	m.metrics.TilesPromoted.Inc()
	m.metrics.ActiveTiles.Set(float64(m.table.Len()))
	m.events.publish(eventbus.TypeTileLoaded, eventbus.PriorityTile, tileEvent(c, nil))
}

func (m *Manager) finishInitialLoad() {
	m.mu.Lock()
	entry := m.entry
	continent := m.continent
	m.mu.Unlock()

	ground, grounded := m.query.HeightAt(entry.X, entry.Y)
	entry.Z = ground + entryLift
	if !grounded {
		m.log.Warn("⚠️ Нет земли в точке входа (%.1f, %.1f), высота %.1f", entry.X, entry.Y, entry.Z)
	}

	m.mu.Lock()
	m.entry = entry
	m.entered = true
	m.mu.Unlock()

	m.log.Info("✅ Начальная загрузка завершена: %d тайлов, вход (%.1f, %.1f, %.1f)",
		m.table.Len(), entry.X, entry.Y, entry.Z)
	m.events.publish(eventbus.TypeInitialLoadDone, eventbus.PriorityWorld, EntryEvent{
		Continent: continent,
		X:         entry.X,
		Y:         entry.Y,
		Z:         entry.Z,
		Grounded:  grounded,
	})
}

// HeightAt высота земли в мировой точке
func (m *Manager) HeightAt(x, y float64) (float64, bool) {
	return m.query.HeightAt(x, y)
}

// Intersect ближайшее пересечение луча с активными тайлами
func (m *Manager) Intersect(r terrain.Ray) IntersectResult {
	return m.query.Intersect(r)
}

// TileAt активный тайл, содержащий точку
func (m *Manager) TileAt(p vec.Vec3Float) (*ActiveTile, bool) {
	return m.query.TileAt(p)
}

// Query возвращает объект запросов для использования вне переднего плана
func (m *Manager) Query() *TerrainQuery {
	return m.query
}

// Stage текущая стадия координаты
func (m *Manager) Stage(c terrain.TileCoord) Stage {
	return m.lifecycle.stage(c)
}

// IsInitialLoad true, пока идёт начальная загрузка мира
func (m *Manager) IsInitialLoad() bool {
	return m.progress.isActive()
}

// EntryPosition точка входа. ok == false до завершения начальной загрузки.
func (m *Manager) EntryPosition() (vec.Vec3Float, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entry, m.entered
}

// SessionID идентификатор текущей сессии мира
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Continent текущий континент
func (m *Manager) Continent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.continent
}

func (m *Manager) Stats() Stats {
	return Stats{
		Generation:     m.generation.Load(),
		Active:         m.table.Len(),
		PendingLoads:   m.loader.pending.len(),
		Completed:      m.loader.completed.len(),
		PendingUnloads: m.unloader.Pending(),
		Deferred:       m.planner.deferredLen(),
		Stages:         m.lifecycle.counts(),
		Progress:       m.progress.fraction(),
		InitialLoad:    m.progress.isActive(),
	}
}
