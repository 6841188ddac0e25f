package streaming

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var center = terrain.TileCoord{X: 10, Y: 10}

func TestEnterWorldLoadsWindow(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.provider.fillFlat(t, testContinent, 6, 6, 16, 14)

	entry := tileCenter(center)
	session := env.m.EnterWorld(testContinent, entry.XY())
	require.NotEmpty(t, session)
	assert.True(t, env.m.IsInitialLoad())

	_, ok := env.m.EntryPosition()
	assert.False(t, ok)

	env.pump()

	assert.Equal(t, 25, env.m.table.Len())
	assert.False(t, env.m.IsInitialLoad())

	pos, ok := env.m.EntryPosition()
	require.True(t, ok)
	assert.InDelta(t, flatHeight(center)+entryLift, pos.Z, 1e-4)

	values := env.progress.snapshot()
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}
	assert.Equal(t, 1.0, values[len(values)-1])

	for _, c := range terrain.Window(center, 2) {
		assert.Equal(t, StageActive, env.m.Stage(c), c.String())
	}
}

func TestIdempotentEnqueue(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := terrain.TileCoord{X: 40, Y: 40}
	env.provider.fillFlat(t, testContinent, 40, 40, 40, 40)
	env.m.EnterWorld(testContinent, tileCenter(terrain.TileCoord{X: 1, Y: 1}).XY())

	assert.True(t, env.m.loader.Enqueue(c))
	assert.False(t, env.m.loader.Enqueue(c))
	assert.Equal(t, 1, env.m.loader.pending.len())

	env.drainLoads()
	assert.Equal(t, 1, env.provider.loadCount(c))
	assert.Equal(t, 1, env.m.loader.completed.len())
	assert.Equal(t, StageLoaded, env.m.Stage(c))

	assert.False(t, env.m.loader.Enqueue(c))
	assert.False(t, env.m.loader.Enqueue(terrain.TileCoord{X: -1, Y: 3}))
}

func TestRadiusCorrectness(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.EnterWorld(testContinent, tileCenter(center).XY())

	cases := []struct {
		tile terrain.TileCoord
		want int
	}{
		{terrain.TileCoord{X: 10, Y: 10}, 25},
		{terrain.TileCoord{X: 0, Y: 0}, 9},
		{terrain.TileCoord{X: 63, Y: 10}, 15},
		{terrain.TileCoord{X: 1, Y: 63}, 12},
	}

	for _, tc := range cases {
		env.m.OnPositionChanged(tileCenter(tc.tile))
		valid := env.m.planner.ValidSet()
		assert.Len(t, valid, tc.want, tc.tile.String())
		for _, c := range valid {
			assert.True(t, c.Valid())
			d := vec.Vec2{X: c.X, Y: c.Y}.ChebyshevDistance(vec.Vec2{X: tc.tile.X, Y: tc.tile.Y})
			assert.LessOrEqual(t, d, 2)
		}
	}
}

func TestSameTileIsNoop(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.EnterWorld(testContinent, tileCenter(center).XY())

	p := tileCenter(center)
	p.X += 10
	assert.False(t, env.m.planner.OnPositionChanged(p))
	p.X += terrain.TileSize
	assert.True(t, env.m.planner.OnPositionChanged(p))
}

func TestEvictionVisibility(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 4})
	env.provider.fillFlat(t, testContinent, 6, 6, 16, 14)
	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()
	require.Equal(t, 25, env.m.table.Len())

	evicted := terrain.TileCoord{X: 8, Y: 10}
	env.m.OnPositionChanged(tileCenter(terrain.TileCoord{X: 13, Y: 10}))

	_, ok := env.m.table.TryGet(evicted)
	assert.False(t, ok)
	_, found := env.m.HeightAt(tileCenter(evicted).X, tileCenter(evicted).Y)
	assert.False(t, found)
	assert.Equal(t, StageUnloading, env.m.Stage(evicted))
	assert.Equal(t, 15, env.m.table.Len())

	_, released, _ := env.factory.counts()
	assert.Equal(t, 0, released)
	assert.Equal(t, 10, env.m.unloader.Pending())

	assert.Equal(t, 10, env.m.unloader.Flush())
	assert.Equal(t, StageUnloaded, env.m.Stage(evicted))

	env.pump()
	assert.Equal(t, 25, env.m.table.Len())
	z, found := env.m.HeightAt(tileCenter(terrain.TileCoord{X: 15, Y: 12}).X, tileCenter(terrain.TileCoord{X: 15, Y: 12}).Y)
	require.True(t, found)
	assert.InDelta(t, 25.0, z, 1e-4)
}

func TestStaleLoadDrop(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 8})
	env.provider.fillFlat(t, testContinent, 6, 6, 16, 14)
	env.m.EnterWorld(testContinent, tileCenter(center).XY())

	env.drainLoads()
	require.Equal(t, 25, env.m.loader.completed.len())

	far := terrain.TileCoord{X: 30, Y: 30}
	env.m.OnPositionChanged(tileCenter(far))
	env.pump()

	assert.Equal(t, 0, env.m.table.Len())
	for _, c := range terrain.Window(center, 2) {
		assert.Equal(t, StageUnloaded, env.m.Stage(c), c.String())
	}
	assert.Equal(t, 25.0, counterValue(env.m.metrics.StaleDropped))

	live, _, _ := env.factory.counts()
	assert.Equal(t, 0, live)

	// Загрузка мира всё равно завершается
	assert.False(t, env.m.IsInitialLoad())
	pos, ok := env.m.EntryPosition()
	require.True(t, ok)
	assert.InDelta(t, entryLift, pos.Z, 1e-9)
}

func TestHeightRoundTrip(t *testing.T) {
	env := newTestEnv(t, Options{})
	slope := func(x, y float64) float64 { return 0.01*x + 0.02*y }
	env.provider.put(t, testContinent, terrain.NewRawTile(center, slope))
	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()

	tile, ok := env.m.table.TryGet(center)
	require.True(t, ok)

	for _, idx := range [][2]int{{0, 0}, {3, 7}, {15, 15}, {8, 2}} {
		sc := tile.Raw.Chunk(idx[0], idx[1])
		for row := 0; row < terrain.VertexRows-1; row++ {
			cols := 8
			for col := 0; col < cols; col++ {
				v := sc.Vertex(row, col)
				z, found := env.m.HeightAt(v.X, v.Y)
				require.True(t, found)
				assert.InDelta(t, float64(float32(slope(v.X, v.Y))), z, 1e-3)
			}
		}
	}

	_, found := env.m.HeightAt(-1, 100)
	assert.False(t, found)
	_, found = env.m.HeightAt(terrain.WorldSize+1, 100)
	assert.False(t, found)
}

func TestHeightAnywhereInsideFlatTile(t *testing.T) {
	env := newTestEnv(t, Options{})
	const h = 37.25
	env.provider.put(t, testContinent, terrain.NewFlatTile(center, h))
	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()

	origin := center.Origin()
	const eps = 1e-6
	u := terrain.UnitSize
	cs := terrain.ChunkSize
	samples := [][2]float64{
		{0, 0},
		{eps, eps},
		{0.3 * u, 0.1 * u},
		{0.5 * u, 0.5 * u},
		// полоса нечётного ряда и его правый край
		{3.7 * u, 0.6 * u},
		{7.9 * u, 0.55 * u},
		// правый и верхний края подчанка, угол
		{cs - eps, 0.4 * u},
		{0.2 * u, cs - eps},
		{cs - eps, cs - eps},
		{cs + 0.25*u, 2*cs + 0.8*u},
		// края тайла
		{terrain.TileSize - eps, 5.5 * cs},
		{7.3 * cs, terrain.TileSize - eps},
		{terrain.TileSize - eps, terrain.TileSize - eps},
	}
	for _, p := range samples {
		z, found := env.m.HeightAt(origin.X+p[0], origin.Y+p[1])
		require.True(t, found, "(%.4f, %.4f)", p[0], p[1])
		assert.InDelta(t, h, z, 1e-4, "(%.4f, %.4f)", p[0], p[1])
	}
}

func TestIntersectNearestAcrossTiles(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := terrain.TileCoord{X: 0, Y: 0}
	b := terrain.TileCoord{X: 1, Y: 0}
	require.NoError(t, env.m.table.Insert(a, &ActiveTile{Coord: a, Raw: terrain.NewFlatTile(a, 0)}))
	require.NoError(t, env.m.table.Insert(b, &ActiveTile{Coord: b, Raw: terrain.NewFlatTile(b, 100)}))

	// Луч снизу пересекает плоскость A через 20 единиц по X и плоскость B через 220
	origin := vec.Vec3Float{X: terrain.TileSize - 100, Y: 100.3, Z: -10}
	r := terrain.NewRay(origin, vec.Vec3Float{X: 1, Z: 0.5})

	res := env.m.Intersect(r)
	require.True(t, res.Hit)
	assert.Equal(t, a, res.Chunk.Tile)
	assert.InDelta(t, 20*math.Sqrt(1.25), res.Distance, 1e-6)
	assert.InDelta(t, 0, res.Position.Z, 1e-6)

	miss := env.m.Intersect(terrain.NewRay(vec.Vec3Float{X: 10, Y: 10, Z: 500}, vec.Vec3Float{Z: 1}))
	assert.False(t, miss.Hit)
	assert.Equal(t, math.MaxFloat64, miss.Position.X)
}

func TestTileAt(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := terrain.TileCoord{X: 2, Y: 3}
	require.NoError(t, env.m.table.Insert(c, &ActiveTile{Coord: c, Raw: terrain.NewFlatTile(c, 42)}))

	p := tileCenter(c)
	p.Z = 42
	tile, ok := env.m.TileAt(p)
	require.True(t, ok)
	assert.Equal(t, c, tile.Coord)

	p.Z = 43
	_, ok = env.m.TileAt(p)
	assert.False(t, ok)
}

func TestTransientFailureSettlesProgress(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 4})
	env.provider.fillFlat(t, testContinent, 8, 8, 12, 12)

	corrupt := terrain.TileCoord{X: 10, Y: 11}
	broken := terrain.TileCoord{X: 11, Y: 11}
	env.provider.putBytes(testContinent, corrupt, []byte("WTIL мусор"))
	env.provider.failWith(testContinent, broken, errors.New("диск недоступен"))

	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()

	assert.Equal(t, 23, env.m.table.Len())
	assert.Equal(t, StageUnloaded, env.m.Stage(corrupt))
	assert.Equal(t, StageUnloaded, env.m.Stage(broken))
	assert.Equal(t, 2.0, counterValue(env.m.metrics.LoadFailures))
	assert.False(t, env.m.IsInitialLoad())
	assert.Equal(t, 1.0, env.m.Stats().Progress)

	_, found := env.m.HeightAt(tileCenter(corrupt).X, tileCenter(corrupt).Y)
	assert.False(t, found)

	// Повторная попытка после пересечения границы тайла
	env.provider.fillFlat(t, testContinent, 10, 11, 10, 11)
	env.m.OnPositionChanged(tileCenter(terrain.TileCoord{X: 10, Y: 11}))
	env.pump()
	assert.Equal(t, StageActive, env.m.Stage(corrupt))
}

func TestUploadFailureResetsCoordinate(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.provider.fillFlat(t, testContinent, 10, 10, 10, 10)
	env.factory.failNext = errors.New("нет видеопамяти")

	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()

	assert.Equal(t, StageUnloaded, env.m.Stage(center))
	assert.False(t, env.m.IsInitialLoad())
}

func TestDeferredReenqueue(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 4})
	env.provider.fillFlat(t, testContinent, 6, 6, 16, 14)
	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()

	back := terrain.TileCoord{X: 8, Y: 9}
	env.m.OnPositionChanged(tileCenter(terrain.TileCoord{X: 13, Y: 10}))
	env.m.OnPositionChanged(tileCenter(center))

	assert.Equal(t, StageUnloading, env.m.Stage(back))
	assert.Equal(t, 10, env.m.Stats().Deferred)

	env.m.OnFrame()
	assert.Equal(t, StageUnloading, env.m.Stage(back))

	env.m.unloader.Flush()
	env.m.OnFrame()
	assert.Equal(t, StagePending, env.m.Stage(back))
	assert.Equal(t, 0, env.m.Stats().Deferred)

	env.pump()
	assert.Equal(t, 25, env.m.table.Len())
	_, _, doubles := env.factory.counts()
	assert.Equal(t, 0, doubles)
}

func TestExclusivityUnderRandomInterleaving(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 2})
	env.provider.fillFlat(t, testContinent, 4, 4, 20, 20)
	env.m.EnterWorld(testContinent, tileCenter(center).XY())

	rng := rand.New(rand.NewSource(7))
	pos := center
	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			pos.X = clamp(pos.X+rng.Intn(3)-1, 6, 18)
			pos.Y = clamp(pos.Y+rng.Intn(3)-1, 6, 18)
			env.m.OnPositionChanged(tileCenter(pos))
		case 1:
			env.m.loader.step(context.Background())
		case 2:
			env.m.OnFrame()
		case 3:
			env.m.unloader.Flush()
		}
		assertExclusive(t, env.m)
	}

	_, _, doubles := env.factory.counts()
	assert.Equal(t, 0, doubles)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// assertExclusive проверяет, что координата находится не более чем в одной
// структуре и стадия реестра с ней согласована
func assertExclusive(t *testing.T, m *Manager) {
	t.Helper()

	seen := make(map[terrain.TileCoord]Stage)
	add := func(c terrain.TileCoord, stage Stage) {
		if prev, ok := seen[c]; ok {
			t.Fatalf("координата %s одновременно в %s и %s", c, prev, stage)
		}
		seen[c] = stage
		require.Equal(t, stage, m.Stage(c), c.String())
	}

	for _, c := range m.loader.pending.coords() {
		add(c, StagePending)
	}
	for _, c := range m.loader.completed.coords() {
		add(c, StageLoaded)
	}
	for _, c := range m.table.Coords() {
		add(c, StageActive)
	}
	m.unloader.mu.Lock()
	unloading := make([]terrain.TileCoord, 0, len(m.unloader.tiles))
	for _, tile := range m.unloader.tiles {
		unloading = append(unloading, tile.Coord)
	}
	m.unloader.mu.Unlock()
	for _, c := range unloading {
		add(c, StageUnloading)
	}
}

func TestEnterWorldResetsPipeline(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 4})
	env.provider.fillFlat(t, testContinent, 8, 8, 12, 12)
	env.provider.fillFlat(t, "Kalimdor", 8, 8, 12, 12)

	first := env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.pump()
	require.Equal(t, 25, env.m.table.Len())

	second := env.m.EnterWorld("Kalimdor", tileCenter(center).XY())
	assert.NotEqual(t, first, second)
	assert.Equal(t, "Kalimdor", env.m.Continent())
	assert.Equal(t, 0, env.m.table.Len())
	assert.Equal(t, uint64(2), env.m.Stats().Generation)
	assert.Equal(t, 25, env.m.Stats().Deferred)

	env.m.unloader.Flush()
	env.pump()
	assert.Equal(t, 25, env.m.table.Len())
	assert.False(t, env.m.IsInitialLoad())

	live, released, doubles := env.factory.counts()
	assert.Equal(t, 25, live)
	assert.Equal(t, 25, released)
	assert.Equal(t, 0, doubles)
}

func TestEnterWorldDropsLoadsOfPreviousWorld(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 4})
	env.provider.fillFlat(t, testContinent, 8, 8, 12, 12)

	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.drainLoads()
	stale := env.m.loader.completed.len()
	require.Equal(t, 25, stale)

	// Тайл прошлого мира, попавший в буфер после сброса
	old := env.m.loader.completed.pop()
	env.m.EnterWorld("Kalimdor", tileCenter(center).XY())
	env.m.loader.completed.push(old)

	env.m.OnFrame()
	assert.Equal(t, 0, env.m.table.Len())
	assert.Equal(t, 1.0, counterValue(env.m.metrics.StaleDropped))
	assert.Equal(t, StageUnloaded, env.m.Stage(old.Raw.Coord))
}

func TestReenterWorldWhileRequestInFlight(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 8})
	env.provider.fillFlat(t, testContinent, 6, 6, 14, 14)
	entry := tileCenter(center).XY()
	env.m.EnterWorld(testContinent, entry)

	// Загрузчик забрал запрос до повторного входа и обработает его после
	held, ok := env.m.loader.pending.pop()
	require.True(t, ok)
	env.m.EnterWorld(testContinent, entry)
	require.Equal(t, StagePending, env.m.Stage(held.coord))

	queued := env.m.loader.pending.clear()
	env.m.loader.pending.push(held)
	for _, r := range queued {
		env.m.loader.pending.push(r)
	}
	env.pump()

	assert.Equal(t, StageActive, env.m.Stage(held.coord), held.coord.String())
	assert.Equal(t, 25, env.m.table.Len())
	assert.False(t, env.m.IsInitialLoad(), "начальная загрузка должна завершиться")
	assert.Equal(t, 1.0, counterValue(env.m.metrics.StaleDropped))
	assertExclusive(t, env.m)
}

func TestReenterWorldWithResultOfPreviousWorld(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 8})
	env.provider.fillFlat(t, testContinent, 6, 6, 14, 14)
	entry := tileCenter(center).XY()
	env.m.EnterWorld(testContinent, entry)
	env.drainLoads()

	// Результат прошлого мира попал в буфер уже после сброса
	old := env.m.loader.completed.pop()
	env.m.EnterWorld(testContinent, entry)
	env.m.loader.completed.push(old)
	env.m.OnFrame()

	assert.Equal(t, StagePending, env.m.Stage(old.Raw.Coord), "запись нового мира не тронута")

	env.pump()
	assert.Equal(t, StageActive, env.m.Stage(old.Raw.Coord))
	assert.Equal(t, 25, env.m.table.Len())
	assert.False(t, env.m.IsInitialLoad())
	live, _, doubles := env.factory.counts()
	assert.Equal(t, 25, live)
	assert.Equal(t, 0, doubles)
}

func TestInsertConflictReleasesAndResets(t *testing.T) {
	env := newTestEnv(t, Options{MaxPromotionsPerFrame: 32})
	env.provider.fillFlat(t, testContinent, 6, 6, 14, 14)
	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.drainLoads()

	occupant := terrain.NewFlatTile(center, 0)
	res, err := env.factory.Upload(occupant)
	require.NoError(t, err)
	require.NoError(t, env.m.table.Insert(center, newActiveTile(&LoadedTile{Raw: occupant}, res)))

	env.m.OnFrame()

	assert.Equal(t, StageUnloaded, env.m.Stage(center))
	live, released, _ := env.factory.counts()
	assert.Equal(t, 25, live, "24 продвинутых тайла и занявший место")
	assert.Equal(t, 1, released, "ресурсы конфликтующего тайла освобождены")
	assert.False(t, env.m.IsInitialLoad(), "прогресс тайла погашен")
}

func TestEmptyWorldCompletesImmediately(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.EnterWorld(testContinent, tileCenter(center).XY())
	env.m.OnFrame()

	assert.False(t, env.m.IsInitialLoad())
	pos, ok := env.m.EntryPosition()
	require.True(t, ok)
	assert.InDelta(t, entryLift, pos.Z, 1e-9)
}

func TestDisposeIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := terrain.TileCoord{X: 5, Y: 5}
	raw := terrain.NewFlatTile(c, 1)
	res, err := env.factory.Upload(raw)
	require.NoError(t, err)

	tile := &ActiveTile{Coord: c, Raw: raw, Resources: res}
	env.m.unloader.ScheduleDispose(tile)
	env.m.unloader.ScheduleDispose(tile)
	assert.Equal(t, 1, env.m.unloader.Flush())

	_, released, doubles := env.factory.counts()
	assert.Equal(t, 1, released)
	assert.Equal(t, 0, doubles)
	assert.True(t, tile.Released())
}

type countingAmbient struct{ calls atomic.Int32 }

func (a *countingAmbient) AsyncUpdate() { a.calls.Add(1) }

func TestManagerBackgroundWorkers(t *testing.T) {
	provider := newMemProvider()
	provider.fillFlat(t, testContinent, 8, 8, 12, 12)
	factory := newFakeFactory()
	ambient := &countingAmbient{}
	bus := eventbus.NewMemoryBus(256)
	defer bus.Close()

	var done atomic.Value
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeInitialLoadDone}},
		func(_ context.Context, ev *eventbus.Envelope) {
			var entry EntryEvent
			if ev.Decode(&entry) == nil {
				done.Store(ev.Session)
			}
		})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	m, err := NewManager(Options{
		LoadPollInterval:      5 * time.Millisecond,
		UnloadInterval:        10 * time.Millisecond,
		AmbientInterval:       5 * time.Millisecond,
		MaxPromotionsPerFrame: 4,
	}, Dependencies{Provider: provider, Factory: factory, Ambient: ambient, Bus: bus})
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	session := m.EnterWorld(testContinent, tileCenter(center).XY())
	eventually(t, func() bool {
		m.OnFrame()
		return !m.IsInitialLoad() && m.table.Len() == 25
	})
	eventually(t, func() bool { return done.Load() == session })
	eventually(t, func() bool { return ambient.calls.Load() > 0 })

	m.OnPositionChanged(tileCenter(terrain.TileCoord{X: 12, Y: 10}))
	eventually(t, func() bool { return m.Stage(terrain.TileCoord{X: 8, Y: 10}) == StageUnloaded })

	require.NoError(t, m.Shutdown())
	live, _, doubles := factory.counts()
	assert.Equal(t, 0, live)
	assert.Equal(t, 0, doubles)
	assert.Equal(t, 0, m.table.Len())
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	_, err := NewManager(Options{}, Dependencies{Factory: newFakeFactory()})
	assert.Error(t, err)
	_, err = NewManager(Options{}, Dependencies{Provider: newMemProvider()})
	assert.Error(t, err)
}
