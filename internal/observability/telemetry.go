package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/terrain-streamer/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName имя трассировщика подсистемы подкачки
const TracerName = "github.com/annel0/terrain-streamer/streaming"

// TelemetryOptions параметры экспорта трасс
type TelemetryOptions struct {
	ServiceName string
	Endpoint    string  // host:port OTLP/HTTP; пусто - из OTEL_EXPORTER_OTLP_*
	Insecure    bool    // http вместо https
	SampleRatio float64 // доля корневых трасс; <=0 или >=1 - все
}

func (o TelemetryOptions) sampler() sdktrace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
}

func (o TelemetryOptions) exporterOptions() []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if o.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(o.Endpoint))
	}
	if o.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// InitTelemetry ставит глобальный TracerProvider с OTLP/HTTP экспортером.
// Возвращённый shutdown сбрасывает буфер спанов (не дольше 5с).
func InitTelemetry(ctx context.Context, opts TelemetryOptions) (func(context.Context) error, error) {
	exp, err := otlptracehttp.New(ctx, opts.exporterOptions()...)
	if err != nil {
		return nil, fmt.Errorf("otlp экспортер: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			attribute.String("terrain.component", "streaming"),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("ресурс телеметрии: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.sampler()),
	)
	otel.SetTracerProvider(tp)
	logging.Info("📡 OpenTelemetry включён (service=%s, sample=%.2f)", opts.ServiceName, opts.SampleRatio)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer трассировщик подкачки; без InitTelemetry это no-op
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// TileAttributes атрибуты спана для тайла
func TileAttributes(continent string, x, y int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("terrain.continent", continent),
		attribute.Int("terrain.tile.x", x),
		attribute.Int("terrain.tile.y", y),
		attribute.Int("terrain.tile.index", y*64+x),
	}
}
