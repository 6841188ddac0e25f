package ambient

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultDayPeriod длительность суток редактора
	DefaultDayPeriod = 15 * time.Minute

	ambientMin = 0.38
	ambientMax = 1.00
)

// Light состояние освещения на момент последнего обновления
type Light struct {
	Phase   float64 // 0..1, 0 - восход
	Ambient float32
	TintR   float32
	TintG   float32
	TintB   float32
}

// Clock суточный цикл освещения. AsyncUpdate вызывается фоновым
// обновлением подкачки, Light читается кадром.
type Clock struct {
	period time.Duration
	start  time.Time
	now    func() time.Time

	mu      sync.RWMutex
	light   Light
	updates uint64
}

func NewClock(period time.Duration) *Clock {
	return newClockAt(period, time.Now)
}

func newClockAt(period time.Duration, now func() time.Time) *Clock {
	if period <= 0 {
		period = DefaultDayPeriod
	}
	c := &Clock{period: period, start: now(), now: now}
	c.AsyncUpdate()
	return c
}

// AsyncUpdate пересчитывает освещение по текущему времени
func (c *Clock) AsyncUpdate() {
	elapsed := c.now().Sub(c.start)
	phase := math.Mod(float64(elapsed), float64(c.period)) / float64(c.period)
	light := lightAt(phase)

	c.mu.Lock()
	c.light = light
	c.updates++
	c.mu.Unlock()
}

func (c *Clock) Light() Light {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.light
}

// Updates количество пересчётов
func (c *Clock) Updates() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updates
}

func lightAt(phase float64) Light {
	sunHeight := math.Sin(phase * 2 * math.Pi)

	mid := (ambientMin + ambientMax) * 0.5
	amp := (ambientMax - ambientMin) * 0.5

	// У горизонта свет теплее
	horizon := 1.0 - math.Abs(sunHeight)
	warmth := horizon * horizon * 0.35
	l := Light{
		Phase:   phase,
		Ambient: float32(mid + amp*sunHeight),
		TintR:   float32(1.0 + warmth*0.4),
		TintG:   float32(1.0 - warmth*0.15),
		TintB:   float32(1.0 - warmth*0.5),
	}

	if sunHeight < -0.3 {
		night := float32((-sunHeight - 0.3) / 0.7)
		l.TintR -= night * 0.07
		l.TintG -= night * 0.035
		l.TintB += night * 0.10
	}
	return l
}
