package render

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/terrain-streamer/internal/streaming"
	"github.com/annel0/terrain-streamer/internal/terrain"
)

// ErrDoubleRelease повторное освобождение одного и того же буфера
var ErrDoubleRelease = errors.New("ресурсы уже освобождены")

// Buffer ресурсы тайла без GPU: счётчик вершин и идентификатор
type Buffer struct {
	ID       uint64
	Tile     terrain.TileCoord
	Vertices int
}

// HeadlessFactory фабрика ресурсов без графического контекста.
// Считает выделения и ловит повторные освобождения.
type HeadlessFactory struct {
	nextID atomic.Uint64

	mu       sync.Mutex
	live     map[uint64]*Buffer
	uploads  int
	releases int
	doubles  int
	failNext error
}

var _ streaming.RenderResourceFactory = (*HeadlessFactory)(nil)

func NewHeadlessFactory() *HeadlessFactory {
	return &HeadlessFactory{live: make(map[uint64]*Buffer)}
}

// FailNextUpload заставляет следующий Upload вернуть err
func (f *HeadlessFactory) FailNextUpload(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

func (f *HeadlessFactory) Upload(raw *terrain.RawTile) (streaming.RenderResources, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}

	b := &Buffer{
		ID:       f.nextID.Add(1),
		Tile:     raw.Coord,
		Vertices: terrain.ChunksPerTile * terrain.VerticesPerChunk,
	}
	f.live[b.ID] = b
	f.uploads++
	return b, nil
}

func (f *HeadlessFactory) Release(res streaming.RenderResources) error {
	b, ok := res.(*Buffer)
	if !ok {
		return fmt.Errorf("неизвестный тип ресурсов %T", res)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.live[b.ID]; !ok {
		f.doubles++
		return fmt.Errorf("%w: буфер %d тайла %s", ErrDoubleRelease, b.ID, b.Tile)
	}
	delete(f.live, b.ID)
	f.releases++
	return nil
}

// FactoryStats счётчики фабрики
type FactoryStats struct {
	Uploads        int
	Releases       int
	DoubleReleases int
	Live           int
	LiveVertices   int
}

func (f *HeadlessFactory) Stats() FactoryStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := FactoryStats{
		Uploads:        f.uploads,
		Releases:       f.releases,
		DoubleReleases: f.doubles,
		Live:           len(f.live),
	}
	for _, b := range f.live {
		s.LiveVertices += b.Vertices
	}
	return s
}

// IsLive сообщает, выделен ли сейчас буфер для тайла
func (f *HeadlessFactory) IsLive(c terrain.TileCoord) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.live {
		if b.Tile == c {
			return true
		}
	}
	return false
}
