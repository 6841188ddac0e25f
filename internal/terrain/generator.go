package terrain

import (
	"github.com/aquilax/go-perlin"
)

// Generator строит синтетические тайлы по шуму Перлина.
// Используется утилитой tilegen и для демонстрационных миров.
type Generator struct {
	noise     *perlin.Perlin
	baseline  float64
	amplitude float64
	scale     float64
}

// NewGenerator создаёт генератор с указанным сидом
func NewGenerator(seed int64, baseline, amplitude float64) *Generator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Generator{
		noise:     perlin.NewPerlin(alpha, beta, n, seed),
		baseline:  baseline,
		amplitude: amplitude,
		scale:     TileSize / 2,
	}
}

// HeightAt возвращает высоту в мировой точке
func (g *Generator) HeightAt(x, y float64) float64 {
	return g.baseline + g.amplitude*g.noise.Noise2D(x/g.scale, y/g.scale)
}

// Generate строит тайл с указанными координатами
func (g *Generator) Generate(coord TileCoord) *RawTile {
	return NewRawTile(coord, g.HeightAt)
}
