package streaming

import (
	"sync/atomic"

	"github.com/annel0/terrain-streamer/internal/terrain"
)

// ActiveTile тайл, доступный запросам и отрисовке
type ActiveTile struct {
	Coord      terrain.TileCoord
	Raw        *terrain.RawTile
	Resources  RenderResources
	Generation uint64

	released atomic.Bool
}

func newActiveTile(lt *LoadedTile, res RenderResources) *ActiveTile {
	return &ActiveTile{
		Coord:      lt.Raw.Coord,
		Raw:        lt.Raw,
		Resources:  res,
		Generation: lt.Generation,
	}
}

// Bounds границы геометрии тайла
func (t *ActiveTile) Bounds() terrain.AABB {
	return t.Raw.Bounds
}

// Released сообщает, освобождены ли ресурсы отрисовки
func (t *ActiveTile) Released() bool {
	return t.released.Load()
}

// release освобождает ресурсы ровно один раз. Повторные вызовы возвращают false.
func (t *ActiveTile) release(f RenderResourceFactory) (bool, error) {
	if !t.released.CompareAndSwap(false, true) {
		return false, nil
	}
	if f == nil || t.Resources == nil {
		return true, nil
	}
	return true, f.Release(t.Resources)
}
