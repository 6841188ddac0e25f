package streaming

import (
	"fmt"
	"sync"

	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
)

// ActiveTable таблица активных тайлов. Читается запросами из любого потока,
// изменяется только на переднем плане.
type ActiveTable struct {
	mu    sync.RWMutex
	tiles map[terrain.TileCoord]*ActiveTile
}

func NewActiveTable() *ActiveTable {
	return &ActiveTable{tiles: make(map[terrain.TileCoord]*ActiveTile)}
}

// Insert добавляет тайл. Повторная вставка координаты - ошибка.
func (t *ActiveTable) Insert(c terrain.TileCoord, tile *ActiveTile) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tiles[c]; ok {
		return fmt.Errorf("%w: %s", ErrTileAlreadyActive, c)
	}
	t.tiles[c] = tile
	return nil
}

// Remove удаляет тайл и возвращает его
func (t *ActiveTable) Remove(c terrain.TileCoord) (*ActiveTile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tile, ok := t.tiles[c]
	if ok {
		delete(t.tiles, c)
	}
	return tile, ok
}

func (t *ActiveTable) TryGet(c terrain.TileCoord) (*ActiveTile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tile, ok := t.tiles[c]
	return tile, ok
}

// ForEach обходит копию таблицы. fn возвращает false для остановки.
func (t *ActiveTable) ForEach(fn func(*ActiveTile) bool) {
	for _, tile := range t.Snapshot() {
		if !fn(tile) {
			return
		}
	}
}

// Snapshot возвращает копию активных тайлов
func (t *ActiveTable) Snapshot() []*ActiveTile {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*ActiveTile, 0, len(t.tiles))
	for _, tile := range t.tiles {
		out = append(out, tile)
	}
	return out
}

// Coords возвращает координаты активных тайлов
func (t *ActiveTable) Coords() []terrain.TileCoord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]terrain.TileCoord, 0, len(t.tiles))
	for c := range t.tiles {
		out = append(out, c)
	}
	return out
}

func (t *ActiveTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tiles)
}

// Containing ищет тайл, границы которого содержат точку
func (t *ActiveTable) Containing(p vec.Vec3Float) (*ActiveTile, bool) {
	c := terrain.TileOf(p.X, p.Y)
	tile, ok := t.TryGet(c)
	if !ok || !tile.Bounds().Contains(p) {
		return nil, false
	}
	return tile, true
}
