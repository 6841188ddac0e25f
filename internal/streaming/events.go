package streaming

import (
	"context"
	"time"

	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/terrain"
)

const eventSource = "streaming"

// TileEvent полезная нагрузка событий тайла
type TileEvent struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Index int    `json:"index"`
	Error string `json:"error,omitempty"`
}

// EntryEvent полезная нагрузка InitialLoadDone
type EntryEvent struct {
	Continent string  `json:"continent"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Grounded  bool    `json:"grounded"`
}

func tileEvent(c terrain.TileCoord, err error) TileEvent {
	ev := TileEvent{X: c.X, Y: c.Y, Index: c.Index()}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// eventPublisher публикует события жизненного цикла без блокировки кадра
type eventPublisher struct {
	bus     eventbus.EventBus
	session func() string
	log     *logging.Logger
}

func (p *eventPublisher) publish(eventType string, priority int, payload interface{}) {
	if p == nil || p.bus == nil {
		return
	}

	env, err := eventbus.NewEnvelope(eventType, eventSource, p.session(), priority, payload)
	if err != nil {
		p.log.Warn("⚠️ Не удалось сформировать событие %s: %v", eventType, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := p.bus.Publish(ctx, env); err != nil {
		p.log.Debug("Событие %s не опубликовано: %v", eventType, err)
	}
}
