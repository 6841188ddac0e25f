package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrBusClosed публикация в закрытую шину
var ErrBusClosed = errors.New("шина событий закрыта")

// memoryBus доставляет события в процессе одной горутиной рассылки.
// Обработчики одного подписчика вызываются в порядке публикации.
type memoryBus struct {
	queue chan *Envelope
	done  chan struct{}

	subsMu sync.RWMutex
	subs   map[uint64]*memSub
	nextID uint64

	// sendMu защищает отправку в queue от закрытия канала
	sendMu sync.RWMutex
	closed bool

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64

	typesMu sync.Mutex
	byType  map[string]uint64
}

// NewMemoryBus создаёт in-memory шину с очередью capacity
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 1024
	}
	mb := &memoryBus{
		queue:  make(chan *Envelope, capacity),
		done:   make(chan struct{}),
		subs:   make(map[uint64]*memSub),
		byType: make(map[string]uint64),
	}
	go mb.dispatch()
	return mb
}

// Publish не блокирует тайловые события: при полной очереди они отбрасываются.
// События с приоритетом от PriorityDropBelow ждут места до отмены ctx.
func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.sendMu.RLock()
	defer mb.sendMu.RUnlock()
	if mb.closed {
		return ErrBusClosed
	}

	select {
	case mb.queue <- ev:
		mb.accepted(ev)
		return nil
	default:
	}

	if ev.Priority < PriorityDropBelow {
		mb.dropped.Add(1)
		return nil
	}
	select {
	case mb.queue <- ev:
		mb.accepted(ev)
		return nil
	case <-ctx.Done():
		mb.dropped.Add(1)
		return ctx.Err()
	}
}

func (mb *memoryBus) accepted(ev *Envelope) {
	mb.published.Add(1)
	mb.typesMu.Lock()
	mb.byType[ev.EventType]++
	mb.typesMu.Unlock()
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	cctx, cancel := context.WithCancel(ctx)

	mb.subsMu.Lock()
	defer mb.subsMu.Unlock()
	mb.nextID++
	sub := &memSub{bus: mb, id: mb.nextID, filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.subs[sub.id] = sub
	return sub, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.typesMu.Lock()
	byType := make(map[string]uint64, len(mb.byType))
	for k, v := range mb.byType {
		byType[k] = v
	}
	mb.typesMu.Unlock()

	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  len(mb.queue),
		ByType:    byType,
	}
}

// Close прекращает приём; уже принятые события доставляются
func (mb *memoryBus) Close() error {
	mb.sendMu.Lock()
	if mb.closed {
		mb.sendMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.queue)
	mb.sendMu.Unlock()

	<-mb.done
	return nil
}

func (mb *memoryBus) snapshot() []*memSub {
	mb.subsMu.RLock()
	defer mb.subsMu.RUnlock()
	out := make([]*memSub, 0, len(mb.subs))
	for _, s := range mb.subs {
		out = append(out, s)
	}
	return out
}

func (mb *memoryBus) dispatch() {
	defer close(mb.done)

	for ev := range mb.queue {
		for _, sub := range mb.snapshot() {
			if sub.ctx.Err() != nil || !sub.filter.Match(ev) {
				continue
			}
			sub.handler(sub.ctx, ev)
			mb.consumed.Add(1)
		}
	}
}

type memSub struct {
	bus     *memoryBus
	id      uint64
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *memSub) Unsubscribe() {
	s.cancel()
	s.bus.subsMu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.subsMu.Unlock()
}
