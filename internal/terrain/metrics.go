package terrain

// Размеры сетки мира в мировых единицах
const (
	// GridSize количество тайлов по каждой оси мира
	GridSize = 64
	// ChunksPerSide количество подчанков по стороне тайла
	ChunksPerSide = 16
	// ChunksPerTile общее количество подчанков в тайле
	ChunksPerTile = ChunksPerSide * ChunksPerSide
	// VerticesPerChunk 9x9 внешних + 8x8 внутренних вершин
	VerticesPerChunk = 9*9 + 8*8
	// VertexRows количество чередующихся строк вершин (9, 8, 9, ... 9)
	VertexRows = 17

	TileSize  = 1600.0 / 3.0
	ChunkSize = TileSize / ChunksPerSide
	UnitSize  = ChunkSize / 8.0
	WorldSize = TileSize * GridSize
)

// rowWidth возвращает количество вершин в строке
func rowWidth(row int) int {
	if row%2 != 0 {
		return 8
	}
	return 9
}

// VertexIndex возвращает индекс вершины в массиве высот подчанка.
// Чётные строки - 9 вершин по границам ячеек, нечётные - 8 вершин
// со смещением на половину ячейки.
func VertexIndex(row, col int) int {
	idx := 17*(row/2) + col
	if row%2 != 0 {
		idx += 9
	}
	return idx
}

// VertexLocal возвращает локальные координаты вершины внутри подчанка
func VertexLocal(row, col int) (x, y float64) {
	x = float64(col) * UnitSize
	if row%2 != 0 {
		x += UnitSize * 0.5
	}
	y = float64(row) * UnitSize * 0.5
	return x, y
}
