package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5с", FormatUptime(5*time.Second))
	assert.Equal(t, "2м 3с", FormatUptime(2*time.Minute+3*time.Second))
	assert.Equal(t, "1ч 0м 7с", FormatUptime(time.Hour+7*time.Second))
	assert.Equal(t, "1д 2ч 0м 0с", FormatUptime(26*time.Hour))
}

func TestProcessMonitorSnapshot(t *testing.T) {
	pm, err := NewProcessMonitor()
	require.NoError(t, err)

	s := pm.Snapshot()
	assert.Greater(t, s.Goroutines, 0)
	assert.Greater(t, s.HeapMB, 0.0)
	assert.GreaterOrEqual(t, s.RSSMB, 0.0)
}

func TestTracerIsUsableWithoutInit(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "test")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestTelemetrySampler(t *testing.T) {
	assert.Contains(t, TelemetryOptions{}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, TelemetryOptions{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
	assert.Len(t, TelemetryOptions{Endpoint: "collector:4318", Insecure: true}.exporterOptions(), 2)
	assert.Empty(t, TelemetryOptions{}.exporterOptions())
}

func TestTileAttributes(t *testing.T) {
	attrs := TileAttributes("Azeroth", 3, 2)
	require.Len(t, attrs, 4)
	assert.Equal(t, "Azeroth", attrs[0].Value.AsString())
	assert.Equal(t, int64(2*64+3), attrs[3].Value.AsInt64())
}
