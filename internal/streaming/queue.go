package streaming

import (
	"sync"

	"github.com/annel0/terrain-streamer/internal/terrain"
)

// loadRequest запрос на загрузку тайла конкретного мира
type loadRequest struct {
	coord      terrain.TileCoord
	continent  string
	generation uint64
}

// LoadedTile декодированный тайл, ожидающий продвижения в таблицу активных
type LoadedTile struct {
	Raw        *terrain.RawTile
	Generation uint64
}

// pendingQueue FIFO запросов на загрузку
type pendingQueue struct {
	mu    sync.Mutex
	items []loadRequest
}

func (q *pendingQueue) push(r loadRequest) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
}

func (q *pendingQueue) pop() (loadRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return loadRequest{}, false
	}
	r := q.items[0]
	q.items[0] = loadRequest{}
	q.items = q.items[1:]
	return r, true
}

// removeIf удаляет запросы, для которых drop вернул true, и возвращает их
func (q *pendingQueue) removeIf(drop func(loadRequest) bool) []loadRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []loadRequest
	kept := q.items[:0]
	for _, r := range q.items {
		if drop(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	q.items = kept
	return removed
}

func (q *pendingQueue) clear() []loadRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	return out
}

func (q *pendingQueue) coords() []terrain.TileCoord {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]terrain.TileCoord, len(q.items))
	for i, r := range q.items {
		out[i] = r.coord
	}
	return out
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// completedBuffer буфер загруженных тайлов между загрузчиком и кадром
type completedBuffer struct {
	mu    sync.Mutex
	items []*LoadedTile
}

func (b *completedBuffer) push(t *LoadedTile) {
	b.mu.Lock()
	b.items = append(b.items, t)
	b.mu.Unlock()
}

func (b *completedBuffer) pop() *LoadedTile {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil
	}
	t := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return t
}

func (b *completedBuffer) clear() []*LoadedTile {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.items
	b.items = nil
	return out
}

func (b *completedBuffer) coords() []terrain.TileCoord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]terrain.TileCoord, len(b.items))
	for i, t := range b.items {
		out[i] = t.Raw.Coord
	}
	return out
}

func (b *completedBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
