package streaming

import (
	"math"

	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/annel0/terrain-streamer/internal/vec"
)

// ChunkRef ссылка на подчанк активного тайла
type ChunkRef struct {
	Tile           terrain.TileCoord
	IndexX, IndexY int
}

// IntersectResult результат пересечения луча с ландшафтом.
// При промахе Position заполнена math.MaxFloat64.
type IntersectResult struct {
	Hit      bool
	Position vec.Vec3Float
	Distance float64
	Chunk    ChunkRef
}

var missPosition = vec.Vec3Float{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}

// TerrainQuery запросы высоты и пересечений по активным тайлам.
// Безопасен для вызова из любого потока.
type TerrainQuery struct {
	table *ActiveTable
}

func NewTerrainQuery(table *ActiveTable) *TerrainQuery {
	return &TerrainQuery{table: table}
}

// HeightAt возвращает высоту ближайшей вершины под мировой точкой.
// Вне сетки или без активного тайла found == false.
func (q *TerrainQuery) HeightAt(x, y float64) (float64, bool) {
	c := terrain.TileOf(x, y)
	if !c.Valid() {
		return 0, false
	}
	tile, ok := q.table.TryGet(c)
	if !ok {
		return 0, false
	}

	local := vec.Vec2Float{X: x, Y: y}.Sub(c.Origin())
	cell := local.Floor(terrain.ChunkSize)
	// точка на самой границе тайла после округления
	cell.X = min(max(cell.X, 0), terrain.ChunksPerSide-1)
	cell.Y = min(max(cell.Y, 0), terrain.ChunksPerSide-1)

	sc := tile.Raw.Chunk(cell.X, cell.Y)
	if sc == nil {
		return 0, false
	}
	inChunk := local.Sub(vec.Vec2Float{X: float64(cell.X), Y: float64(cell.Y)}.Mul(terrain.ChunkSize))
	return sc.HeightAtLocal(inChunk.X, inChunk.Y)
}

// Intersect находит ближайшее пересечение луча со всеми активными тайлами
func (q *TerrainQuery) Intersect(r terrain.Ray) IntersectResult {
	best := IntersectResult{Position: missPosition, Distance: math.MaxFloat64}

	q.table.ForEach(func(tile *ActiveTile) bool {
		sc, dist, ok := tile.Raw.Intersect(r)
		if !ok || dist >= best.Distance {
			return true
		}
		best = IntersectResult{
			Hit:      true,
			Position: r.At(dist),
			Distance: dist,
			Chunk:    ChunkRef{Tile: tile.Coord, IndexX: sc.IndexX, IndexY: sc.IndexY},
		}
		return true
	})

	return best
}

// TileAt возвращает активный тайл, границы которого содержат точку
func (q *TerrainQuery) TileAt(p vec.Vec3Float) (*ActiveTile, bool) {
	return q.table.Containing(p)
}
