package terrain

import (
	"math"

	"github.com/annel0/terrain-streamer/internal/vec"
)

const rayEpsilon = 1e-7

// AABB ограничивающий параллелепипед, выровненный по осям
type AABB struct {
	Min vec.Vec3Float
	Max vec.Vec3Float
}

// EmptyAABB возвращает "вывернутый" бокс, который расширяется через Extend
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: vec.Vec3Float{X: inf, Y: inf, Z: inf},
		Max: vec.Vec3Float{X: -inf, Y: -inf, Z: -inf},
	}
}

// Extend расширяет бокс до точки
func (b AABB) Extend(p vec.Vec3Float) AABB {
	b.Min = vec.Vec3Float{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = vec.Vec3Float{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Union объединяет два бокса
func (b AABB) Union(other AABB) AABB {
	return b.Extend(other.Min).Extend(other.Max)
}

// Contains проверяет попадание точки (границы включительно)
func (b AABB) Contains(p vec.Vec3Float) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectRay - тест пересечения луча с боксом методом плит.
// Возвращает расстояние входа (0, если начало луча внутри бокса).
func (b AABB) IntersectRay(r Ray) (float64, bool) {
	tMin := 0.0
	tMax := math.Inf(1)

	origin := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float64{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for axis := 0; axis < 3; axis++ {
		if math.Abs(dir[axis]) < rayEpsilon {
			// Луч параллелен плитам: должен лежать между ними
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return 0, false
			}
			continue
		}

		inv := 1.0 / dir[axis]
		t1 := (lo[axis] - origin[axis]) * inv
		t2 := (hi[axis] - origin[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}

// Ray луч в мировых координатах, Direction нормализован
type Ray struct {
	Origin    vec.Vec3Float
	Direction vec.Vec3Float
}

// NewRay создаёт луч, нормализуя направление
func NewRay(origin, direction vec.Vec3Float) Ray {
	return Ray{Origin: origin, Direction: direction.Normalized()}
}

// At возвращает точку на луче на расстоянии t
func (r Ray) At(t float64) vec.Vec3Float {
	return r.Origin.Add(r.Direction.Mul(t))
}

// intersectTriangle - алгоритм Мёллера-Трумбора.
// Засчитываются только пересечения на положительном расстоянии.
func intersectTriangle(r Ray, a, b, c vec.Vec3Float) (float64, bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)

	p := r.Direction.Cross(edge2)
	det := edge1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return 0, false
	}
	invDet := 1.0 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := r.Direction.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := edge2.Dot(q) * invDet
	if t <= rayEpsilon {
		return 0, false
	}
	return t, true
}
