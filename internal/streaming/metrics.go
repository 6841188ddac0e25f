package streaming

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики подкачки тайлов
type Metrics struct {
	ActiveTiles    prometheus.Gauge
	PendingLoads   prometheus.Gauge
	PendingUnloads prometheus.Gauge

	TilesLoaded   prometheus.Counter
	LoadFailures  prometheus.Counter
	TilesPromoted prometheus.Counter
	StaleDropped  prometheus.Counter
	TilesEvicted  prometheus.Counter
	TilesDisposed prometheus.Counter

	LoadDuration prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil
// метрики работают без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveTiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terrain_active_tiles",
			Help: "Количество активных тайлов",
		}),
		PendingLoads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terrain_pending_loads",
			Help: "Длина очереди загрузки",
		}),
		PendingUnloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terrain_pending_unloads",
			Help: "Тайлы, ожидающие освобождения ресурсов",
		}),
		TilesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_tiles_loaded_total",
			Help: "Успешно декодированные тайлы",
		}),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_tile_load_failures_total",
			Help: "Ошибки загрузки тайлов",
		}),
		TilesPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_tiles_promoted_total",
			Help: "Тайлы, добавленные в таблицу активных",
		}),
		StaleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_stale_loads_dropped_total",
			Help: "Загруженные тайлы, отброшенные как устаревшие",
		}),
		TilesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_tiles_evicted_total",
			Help: "Тайлы, вытесненные из окна видимости",
		}),
		TilesDisposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_tiles_disposed_total",
			Help: "Тайлы с освобождёнными ресурсами",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "terrain_tile_load_seconds",
			Help:    "Время загрузки и декодирования тайла",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ActiveTiles, m.PendingLoads, m.PendingUnloads,
			m.TilesLoaded, m.LoadFailures, m.TilesPromoted,
			m.StaleDropped, m.TilesEvicted, m.TilesDisposed,
			m.LoadDuration,
		)
	}
	return m
}
