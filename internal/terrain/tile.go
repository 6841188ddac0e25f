package terrain

import (
	"math"

	"github.com/annel0/terrain-streamer/internal/vec"
)

// SubChunk одна ячейка сетки 16x16 тайла: карта высот и границы
type SubChunk struct {
	IndexX, IndexY int
	Origin         vec.Vec2Float // мировые координаты угла подчанка
	Heights        [VerticesPerChunk]float32
	Bounds         AABB
}

// RawTile разобранные данные одного тайла. После создания не изменяется.
type RawTile struct {
	Coord  TileCoord
	Chunks [ChunksPerTile]SubChunk
	Bounds AABB
}

// HeightFunc возвращает высоту ландшафта в мировой точке
type HeightFunc func(x, y float64) float64

// NewRawTile строит тайл, вычисляя высоту каждой вершины функцией heights
func NewRawTile(coord TileCoord, heights HeightFunc) *RawTile {
	tile, _ := buildRawTile(coord, func(sc *SubChunk) error {
		for row := 0; row < VertexRows; row++ {
			for col := 0; col < rowWidth(row); col++ {
				lx, ly := VertexLocal(row, col)
				sc.Heights[VertexIndex(row, col)] = float32(heights(sc.Origin.X+lx, sc.Origin.Y+ly))
			}
		}
		return nil
	})
	return tile
}

// NewFlatTile строит плоский тайл на высоте h
func NewFlatTile(coord TileCoord, h float64) *RawTile {
	return NewRawTile(coord, func(_, _ float64) float64 { return h })
}

// buildRawTile заполняет подчанки через fill и вычисляет границы
func buildRawTile(coord TileCoord, fill func(sc *SubChunk) error) (*RawTile, error) {
	tile := &RawTile{Coord: coord, Bounds: EmptyAABB()}
	origin := coord.Origin()

	for i := range tile.Chunks {
		sc := &tile.Chunks[i]
		sc.IndexX = i % ChunksPerSide
		sc.IndexY = i / ChunksPerSide
		sc.Origin = origin.Add(vec.Vec2Float{X: float64(sc.IndexX), Y: float64(sc.IndexY)}.Mul(ChunkSize))
		if err := fill(sc); err != nil {
			return nil, err
		}
		sc.computeBounds()
		tile.Bounds = tile.Bounds.Union(sc.Bounds)
	}

	return tile, nil
}

// Chunk возвращает подчанк по индексам или nil вне сетки 16x16
func (t *RawTile) Chunk(ix, iy int) *SubChunk {
	if ix < 0 || iy < 0 || ix >= ChunksPerSide || iy >= ChunksPerSide {
		return nil
	}
	return &t.Chunks[iy*ChunksPerSide+ix]
}

// Intersect ищет ближайшее пересечение луча с геометрией тайла
func (t *RawTile) Intersect(r Ray) (*SubChunk, float64, bool) {
	if _, ok := t.Bounds.IntersectRay(r); !ok {
		return nil, 0, false
	}

	var best *SubChunk
	bestDist := math.MaxFloat64
	for i := range t.Chunks {
		sc := &t.Chunks[i]
		enter, ok := sc.Bounds.IntersectRay(r)
		if !ok || enter >= bestDist {
			continue
		}
		if dist, ok := sc.Intersect(r); ok && dist < bestDist {
			bestDist = dist
			best = sc
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, bestDist, true
}

// Vertex возвращает мировую позицию вершины
func (sc *SubChunk) Vertex(row, col int) vec.Vec3Float {
	lx, ly := VertexLocal(row, col)
	return vec.Vec3Float{
		X: sc.Origin.X + lx,
		Y: sc.Origin.Y + ly,
		Z: float64(sc.Heights[VertexIndex(row, col)]),
	}
}

// HeightAtLocal возвращает высоту ближайшей вершины для локальной точки подчанка.
// Строка выбирается с шагом в половину ячейки, колонка нечётных строк
// сдвинута на половину ячейки.
func (sc *SubChunk) HeightAtLocal(x, y float64) (float64, bool) {
	row := int(y/(UnitSize*0.5) + 0.5)
	col := int((x-UnitSize*0.5*float64(row%2))/UnitSize + 0.5)

	if row < 0 || col < 0 || row >= VertexRows || col >= rowWidth(row) {
		return 0, false
	}
	return float64(sc.Heights[VertexIndex(row, col)]), true
}

// Intersect проверяет луч против 8x8 ячеек, каждая из 4 треугольников
// вокруг внутренней вершины
func (sc *SubChunk) Intersect(r Ray) (float64, bool) {
	best := math.MaxFloat64
	hit := false

	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			tl := sc.Vertex(2*i, j)
			tr := sc.Vertex(2*i, j+1)
			bl := sc.Vertex(2*i+2, j)
			br := sc.Vertex(2*i+2, j+1)
			center := sc.Vertex(2*i+1, j)

			for _, tri := range [4][2]vec.Vec3Float{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}} {
				if t, ok := intersectTriangle(r, tri[0], tri[1], center); ok && t < best {
					best = t
					hit = true
				}
			}
		}
	}

	return best, hit
}

func (sc *SubChunk) computeBounds() {
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, h := range sc.Heights {
		minZ = math.Min(minZ, float64(h))
		maxZ = math.Max(maxZ, float64(h))
	}
	sc.Bounds = AABB{
		Min: vec.Vec3Float{X: sc.Origin.X, Y: sc.Origin.Y, Z: minZ},
		Max: vec.Vec3Float{X: sc.Origin.X + ChunkSize, Y: sc.Origin.Y + ChunkSize, Z: maxZ},
	}
}
