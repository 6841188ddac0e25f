package eventbus

import (
	"context"

	"github.com/annel0/terrain-streamer/internal/logging"
)

// StartLoggingListener пишет события шины в лог компонента eventbus.
// Ошибки загрузки идут в WARN, остальное в DEBUG.
func StartLoggingListener(bus EventBus, f Filter) (Subscription, error) {
	log := logging.GetEventBusLogger()
	sub, err := bus.Subscribe(context.Background(), f, func(_ context.Context, ev *Envelope) {
		if ev.EventType == TypeTileLoadFailed {
			log.Warn("⚠️ %s src=%s session=%s %s", ev.EventType, ev.Source, ev.Session, ev.Payload)
			return
		}
		log.Debug("📨 %s src=%s session=%s %s", ev.EventType, ev.Source, ev.Session, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 Логирование событий шины включено")
	return sub, nil
}
