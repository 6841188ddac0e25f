package terrain

import (
	"fmt"

	"github.com/annel0/terrain-streamer/internal/vec"
)

// TileCoord координаты тайла в сетке мира 64x64
type TileCoord struct {
	X, Y int
}

// Index возвращает каноническое скалярное представление координаты (y*64+x).
// Это единственная кодировка в проекте.
func (c TileCoord) Index() int {
	return c.Y*GridSize + c.X
}

// FromIndex восстанавливает координату из Index
func FromIndex(index int) TileCoord {
	return TileCoord{X: index % GridSize, Y: index / GridSize}
}

// Valid проверяет, что координата лежит в пределах сетки
func (c TileCoord) Valid() bool {
	return c.X >= 0 && c.Y >= 0 && c.X < GridSize && c.Y < GridSize
}

// Origin возвращает мировые координаты левого нижнего угла тайла
func (c TileCoord) Origin() vec.Vec2Float {
	return vec.Vec2Float{X: float64(c.X) * TileSize, Y: float64(c.Y) * TileSize}
}

// Vec2 координата как целочисленный вектор сетки
func (c TileCoord) Vec2() vec.Vec2 {
	return vec.Vec2{X: c.X, Y: c.Y}
}

// Within сообщает, лежит ли координата в радиусе Чебышёва r от center
func (c TileCoord) Within(center TileCoord, r int) bool {
	return c.Vec2().ChebyshevDistance(center.Vec2()) <= r
}

func (c TileCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// TileOf возвращает тайл, которому принадлежит мировая точка.
// Результат может быть вне сетки, проверяйте Valid.
func TileOf(x, y float64) TileCoord {
	cell := vec.Vec2Float{X: x, Y: y}.Floor(TileSize)
	return TileCoord{X: cell.X, Y: cell.Y}
}

// Window возвращает все координаты в радиусе Чебышёва r от центра,
// обрезанные по границам сетки. Порядок - построчный.
func Window(center TileCoord, r int) []TileCoord {
	result := make([]TileCoord, 0, (2*r+1)*(2*r+1))
	base := center.Vec2()
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			p := base.Add(vec.Vec2{X: dx, Y: dy})
			c := TileCoord{X: p.X, Y: p.Y}
			if !c.Valid() {
				continue
			}
			result = append(result, c)
		}
	}
	return result
}
