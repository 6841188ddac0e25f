package streaming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
	"github.com/stretchr/testify/require"
)

const testContinent = "Azeroth"

// memProvider хранит закодированные тайлы в памяти
type memProvider struct {
	mu    sync.Mutex
	tiles map[string][]byte
	fail  map[string]error
	loads map[terrain.TileCoord]int
}

func newMemProvider() *memProvider {
	return &memProvider{
		tiles: make(map[string][]byte),
		fail:  make(map[string]error),
		loads: make(map[terrain.TileCoord]int),
	}
}

func providerKey(continent string, x, y int) string {
	return fmt.Sprintf("%s/%d/%d", continent, x, y)
}

func (p *memProvider) put(t *testing.T, continent string, raw *terrain.RawTile) {
	t.Helper()
	data, err := terrain.Encode(raw, terrain.EncodeOptions{})
	require.NoError(t, err)
	p.putBytes(continent, raw.Coord, data)
}

func (p *memProvider) putBytes(continent string, c terrain.TileCoord, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tiles[providerKey(continent, c.X, c.Y)] = data
}

func (p *memProvider) failWith(continent string, c terrain.TileCoord, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[providerKey(continent, c.X, c.Y)] = err
}

// fillFlat заполняет прямоугольник плоскими тайлами высотой 10+x
func (p *memProvider) fillFlat(t *testing.T, continent string, x0, y0, x1, y1 int) {
	t.Helper()
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c := terrain.TileCoord{X: x, Y: y}
			p.put(t, continent, terrain.NewFlatTile(c, flatHeight(c)))
		}
	}
}

func flatHeight(c terrain.TileCoord) float64 {
	return 10 + float64(c.X)
}

func (p *memProvider) Exists(continent string, x, y int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tiles[providerKey(continent, x, y)]
	return ok
}

func (p *memProvider) Load(_ context.Context, continent string, x, y int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.loads[terrain.TileCoord{X: x, Y: y}]++
	key := providerKey(continent, x, y)
	if err := p.fail[key]; err != nil {
		return nil, err
	}
	data, ok := p.tiles[key]
	if !ok {
		return nil, errors.New("нет данных")
	}
	return data, nil
}

func (p *memProvider) loadCount(c terrain.TileCoord) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads[c]
}

type fakeResource struct {
	id    int
	coord terrain.TileCoord
}

// fakeFactory считает выделения и повторные освобождения
type fakeFactory struct {
	mu       sync.Mutex
	next     int
	live     map[int]terrain.TileCoord
	released int
	doubles  int
	failNext error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{live: make(map[int]terrain.TileCoord)}
}

func (f *fakeFactory) Upload(raw *terrain.RawTile) (RenderResources, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	f.next++
	f.live[f.next] = raw.Coord
	return &fakeResource{id: f.next, coord: raw.Coord}, nil
}

func (f *fakeFactory) Release(res RenderResources) error {
	r := res.(*fakeResource)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.live[r.id]; !ok {
		f.doubles++
		return errors.New("повторное освобождение")
	}
	delete(f.live, r.id)
	f.released++
	return nil
}

func (f *fakeFactory) counts() (live, released, doubles int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live), f.released, f.doubles
}

// progressRecorder запоминает все значения прогресса
type progressRecorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *progressRecorder) OnProgress(f float64) {
	r.mu.Lock()
	r.values = append(r.values, f)
	r.mu.Unlock()
}

func (r *progressRecorder) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values...)
}

type testEnv struct {
	m        *Manager
	provider *memProvider
	factory  *fakeFactory
	progress *progressRecorder
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	env := &testEnv{
		provider: newMemProvider(),
		factory:  newFakeFactory(),
		progress: &progressRecorder{},
	}
	m, err := NewManager(opts, Dependencies{
		Provider: env.provider,
		Factory:  env.factory,
		Progress: env.progress,
		Logger:   logging.NewConsoleLogger("streaming-test", logging.ERROR),
	})
	require.NoError(t, err)
	env.m = m
	return env
}

// drainLoads синхронно выполняет все запросы загрузчика
func (e *testEnv) drainLoads() {
	for e.m.loader.step(context.Background()) {
	}
}

// pump загружает и продвигает всё, что стоит в очереди
func (e *testEnv) pump() {
	for i := 0; i < 1000; i++ {
		e.drainLoads()
		e.m.OnFrame()
		if e.m.loader.pending.len() == 0 && e.m.loader.completed.len() == 0 {
			return
		}
	}
}

// tileCenter мировая точка в центре тайла
func tileCenter(c terrain.TileCoord) vec.Vec3Float {
	return vec.Vec3Float{
		X: (float64(c.X) + 0.5) * terrain.TileSize,
		Y: (float64(c.Y) + 0.5) * terrain.TileSize,
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}
