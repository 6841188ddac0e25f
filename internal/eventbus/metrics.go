package eventbus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter раз в interval переносит Stats шины в Prometheus.
// Счётчики растут на разницу с прошлым снимком.
type MetricsExporter struct {
	bus      EventBus
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}

	published *prometheus.CounterVec
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

func NewMetricsExporter(bus EventBus, reg prometheus.Registerer) *MetricsExporter {
	me := &MetricsExporter{
		bus:      bus,
		interval: time.Second,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terrain",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Опубликованные события по типам.",
		}, []string{"type"}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrain",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "События, доставленные подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrain",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "События, отброшенные при переполнении или ошибке публикации.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terrain",
			Subsystem: "events",
			Name:      "inflight",
			Help:      "События в очереди шины.",
		}),
	}
	if reg != nil {
		reg.MustRegister(me.published, me.consumed, me.dropped, me.inflight)
	}
	return me
}

func (m *MetricsExporter) Start() {
	go m.loop()
}

func (m *MetricsExporter) Stop() {
	close(m.quit)
	<-m.done
}

func (m *MetricsExporter) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var prev Stats
	for {
		select {
		case <-ticker.C:
			prev = m.collect(prev)
		case <-m.quit:
			m.collect(prev)
			return
		}
	}
}

func (m *MetricsExporter) collect(prev Stats) Stats {
	stats := m.bus.Metrics()

	for eventType, n := range stats.ByType {
		if d := n - prev.ByType[eventType]; d > 0 {
			m.published.WithLabelValues(eventType).Add(float64(d))
		}
	}
	if d := stats.Consumed - prev.Consumed; d > 0 {
		m.consumed.Add(float64(d))
	}
	if d := stats.Dropped - prev.Dropped; d > 0 {
		m.dropped.Add(float64(d))
	}
	m.inflight.Set(float64(stats.InFlight))
	return stats
}
