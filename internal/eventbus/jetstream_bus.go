package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

const subjectPrefix = "terrain.events"

// subjectFor возвращает subject события: terrain.events.<type>
func subjectFor(eventType string) string {
	return subjectPrefix + "." + eventType
}

// subscribeSubject сужает подписку, если фильтр допускает ровно один тип
func subscribeSubject(f Filter) string {
	if len(f.Types) == 1 {
		return subjectFor(f.Types[0])
	}
	return subjectPrefix + ".*"
}

// JetStreamBus публикует события подкачки в NATS JetStream, чтобы их
// видели внешние инструменты (event-cli, мини-карта) в других процессах.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64

	typesMu sync.Mutex
	byType  map[string]uint64
}

// NewJetStreamBus подключается к NATS и создаёт стрим при отсутствии.
// Пустой stream означает "TERRAIN".
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "TERRAIN"
	}

	nc, err := nats.Connect(url, nats.Name("terrain-streamer"))
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + ".*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("создание стрима %s: %w", stream, err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream, byType: make(map[string]uint64)}, nil
}

// Publish асинхронный, кадр не ждёт подтверждения сервера
func (jb *JetStreamBus) Publish(_ context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		jb.dropped.Add(1)
		return fmt.Errorf("сериализация события: %w", err)
	}
	if _, err := jb.js.PublishAsync(subjectFor(ev.EventType), data); err != nil {
		jb.dropped.Add(1)
		return err
	}
	jb.published.Add(1)
	jb.typesMu.Lock()
	jb.byType[ev.EventType]++
	jb.typesMu.Unlock()
	return nil
}

// Subscribe создаёт эфемерного потребителя с начала стрима
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	sub, err := jb.js.Subscribe(subscribeSubject(f), func(msg *nats.Msg) {
		defer func() { _ = msg.Ack() }()
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil || !f.Match(&ev) {
			return
		}
		h(ctx, &ev)
		jb.consumed.Add(1)
	}, nats.ManualAck(), nats.DeliverAll(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("подписка на %s: %w", jb.stream, err)
	}
	return &jetSub{sub}, nil
}

type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

func (jb *JetStreamBus) Metrics() Stats {
	jb.typesMu.Lock()
	byType := make(map[string]uint64, len(jb.byType))
	for k, v := range jb.byType {
		byType[k] = v
	}
	jb.typesMu.Unlock()

	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
		InFlight:  jb.js.PublishAsyncPending(),
		ByType:    byType,
	}
}

// Close ждёт подтверждений (не дольше 5с) и закрывает соединение
func (jb *JetStreamBus) Close() error {
	select {
	case <-jb.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
	}
	return jb.nc.Drain()
}

// StreamState состояние стрима: сообщения, объём, временные границы
func (jb *JetStreamBus) StreamState() (nats.StreamState, error) {
	info, err := jb.js.StreamInfo(jb.stream)
	if err != nil {
		return nats.StreamState{}, fmt.Errorf("stream info: %w", err)
	}
	return info.State, nil
}
