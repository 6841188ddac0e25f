package main

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/annel0/terrain-streamer/internal/ambient"
	"github.com/annel0/terrain-streamer/internal/config"
	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/observability"
	"github.com/annel0/terrain-streamer/internal/render"
	"github.com/annel0/terrain-streamer/internal/storage"
	"github.com/annel0/terrain-streamer/internal/streaming"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
)

const (
	frameRate      = 60
	reportInterval = 5 * time.Second
	cameraLift     = 50.0
)

// camera движется по прямой с постоянной скоростью и отражается от краёв мира
type camera struct {
	position vec.Vec3Float
	heading  float64 // радианы
	speed    float64
}

func newCamera(cfg *config.CameraConfig) *camera {
	return &camera{
		position: vec.Vec3Float{X: cfg.EntryX, Y: cfg.EntryY},
		heading:  cfg.Heading * math.Pi / 180,
		speed:    cfg.Speed,
	}
}

func (c *camera) direction() vec.Vec3Float {
	return vec.Vec3Float{X: math.Cos(c.heading), Y: math.Sin(c.heading)}
}

// advance сдвигает камеру на dt секунд и ставит её над землёй
func (c *camera) advance(dt float64, q *streaming.TerrainQuery) vec.Vec3Float {
	step := c.direction().Mul(c.speed * dt)
	next := c.position.Add(step)

	if next.X < 0 || next.X >= terrain.WorldSize {
		c.heading = math.Pi - c.heading
		next.X = c.position.X
	}
	if next.Y < 0 || next.Y >= terrain.WorldSize {
		c.heading = -c.heading
		next.Y = c.position.Y
	}

	if z, ok := q.HeightAt(next.X, next.Y); ok {
		next.Z = z + cameraLift
	}
	c.position = next
	return next
}

// progressLogger пишет прогресс начальной загрузки с шагом 10%
type progressLogger struct {
	lastDecile atomic.Int32
}

func newProgressLogger() *progressLogger {
	p := &progressLogger{}
	p.lastDecile.Store(-1)
	return p
}

func (p *progressLogger) OnProgress(fraction float64) {
	decile := int32(fraction * 10)
	last := p.lastDecile.Load()
	if decile == last || !p.lastDecile.CompareAndSwap(last, decile) {
		return
	}
	logging.Info("⏳ Загрузка мира: %d%%", decile*10)
}

type editor struct {
	manager *streaming.Manager
	camera  *camera
	factory *render.HeadlessFactory
	cache   *storage.CachedProvider
	clock   *ambient.Clock
	monitor *observability.ProcessMonitor

	positioned bool
}

// run крутит кадры с частотой 60 Гц до отмены ctx или истечения limit
func (e *editor) run(ctx context.Context, limit time.Duration) {
	frames := time.NewTicker(time.Second / frameRate)
	defer frames.Stop()
	report := time.NewTicker(reportInterval)
	defer report.Stop()

	var deadline <-chan time.Time
	if limit > 0 {
		deadline = time.After(limit)
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			logging.Info("⏱️ Время работы истекло")
			return
		case now := <-frames.C:
			dt := now.Sub(last).Seconds()
			last = now
			e.frame(dt)
		case <-report.C:
			e.report()
		}
	}
}

func (e *editor) frame(dt float64) {
	e.manager.OnFrame()

	// Пока идёт начальная загрузка, камера стоит
	if e.manager.IsInitialLoad() {
		return
	}
	if !e.positioned {
		entry, ok := e.manager.EntryPosition()
		if !ok {
			return
		}
		e.camera.position = entry
		e.positioned = true
		logging.Info("🎥 Камера в точке входа (%.1f, %.1f, %.1f)", entry.X, entry.Y, entry.Z)
	}

	pos := e.camera.advance(dt, e.manager.Query())
	e.manager.OnPositionChanged(pos)
}

func (e *editor) report() {
	st := e.manager.Stats()
	fs := e.factory.Stats()
	cs := e.cache.Stats()
	light := e.clock.Light()
	pos := e.camera.position

	logging.Info("📊 Камера (%.0f, %.0f, %.0f) тайл %s | активных %d, в очереди %d, на выгрузке %d | буферов %d | кэш %.0f%% | свет %.2f",
		pos.X, pos.Y, pos.Z, terrain.TileOf(pos.X, pos.Y), st.Active, st.PendingLoads, st.PendingUnloads,
		fs.Live, cs.Ratio*100, light.Ambient)

	// Луч вперёд и вниз из камеры
	dir := e.camera.direction()
	dir.Z = -0.5
	hit := e.manager.Intersect(terrain.NewRay(pos, dir))
	if hit.Hit {
		logging.Debug("🎯 Луч камеры: (%.1f, %.1f, %.1f) на расстоянии %.1f, подчанк %s[%d,%d]",
			hit.Position.X, hit.Position.Y, hit.Position.Z, hit.Distance,
			hit.Chunk.Tile, hit.Chunk.IndexX, hit.Chunk.IndexY)
	}

	if e.monitor != nil {
		ps := e.monitor.Snapshot()
		logging.Info("🖥️ Процесс: RSS %.1f MB, heap %.1f MB, CPU %.1f%%, горутин %d, uptime %s",
			ps.RSSMB, ps.HeapMB, ps.CPUPercent, ps.Goroutines, observability.FormatUptime(ps.Uptime))
	}
}
