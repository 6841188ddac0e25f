package streaming

import (
	"context"

	"github.com/annel0/terrain-streamer/internal/terrain"
)

// TileDataProvider источник сырых байтов тайлов.
// Вызывается только из фонового загрузчика.
type TileDataProvider interface {
	Exists(continent string, x, y int) bool
	Load(ctx context.Context, continent string, x, y int) ([]byte, error)
}

// RenderResources непрозрачный дескриптор GPU-ресурсов тайла
type RenderResources interface{}

// RenderResourceFactory создаёт и освобождает ресурсы отрисовки.
// Upload вызывается на переднем плане, Release - из фонового выгрузчика.
type RenderResourceFactory interface {
	Upload(raw *terrain.RawTile) (RenderResources, error)
	Release(res RenderResources) error
}

// ProgressSink получает долю выполнения начальной загрузки в [0,1].
// Может вызываться из любого потока и не должен обращаться к Manager.
type ProgressSink interface {
	OnProgress(fraction float64)
}

// ProgressFunc адаптер функции к ProgressSink
type ProgressFunc func(fraction float64)

func (f ProgressFunc) OnProgress(fraction float64) { f(fraction) }

// AmbientRefresher обновляет окружение (небо, освещение) в фоне
type AmbientRefresher interface {
	AsyncUpdate()
}
