package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/nats-io/nats.go"
)

// DefaultInvalidationSubject тема NATS для уведомлений о перезаписи тайлов
const DefaultInvalidationSubject = "terrain.tiles.invalidate"

// TileInvalidation сообщение о том, что тайл перезаписан в хранилище.
type TileInvalidation struct {
	Continent string    `json:"continent"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

func (m TileInvalidation) key() string {
	return cacheKey(m.Continent, m.X, m.Y)
}

// InvalidationHandler вызывается для каждого чужого уведомления
type InvalidationHandler func(TileInvalidation)

// InvalidatorConfig настройки NATS invalidator
type InvalidatorConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	DedupeWindow  time.Duration
}

func (c InvalidatorConfig) withDefaults() InvalidatorConfig {
	if c.Subject == "" {
		c.Subject = DefaultInvalidationSubject
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = time.Second
	}
	return c
}

// dedupe помнит недавно обработанные ключи в пределах окна
type dedupe struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func newDedupe(window time.Duration) *dedupe {
	return &dedupe{window: window, seen: make(map[string]time.Time), now: time.Now}
}

// admit возвращает false, если ключ уже встречался внутри окна
func (d *dedupe) admit(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

// sweep удаляет устаревшие записи
func (d *dedupe) sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.window {
			delete(d.seen, key)
		}
	}
	return len(d.seen)
}

// NATSInvalidator рассылает и принимает уведомления о перезаписи тайлов.
// Генератор публикует, редактор сбрасывает по ним кэш тайлов.
type NATSInvalidator struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	dedupe  *dedupe

	sub    *nats.Subscription
	stopCh chan struct{}
	wg     sync.WaitGroup

	published atomic.Int64
	received  atomic.Int64
	errors    atomic.Int64
}

// NewNATSInvalidator подключается к NATS
func NewNATSInvalidator(cfg InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	cfg = cfg.withDefaults()
	log := logging.GetStorageLogger()

	conn, err := nats.Connect(cfg.URL,
		nats.Name("terrain-invalidator-"+nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("⚠️ NATS invalidator отключён: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("🔄 NATS invalidator переподключён к %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к NATS: %w", err)
	}

	inv := &NATSInvalidator{
		conn:    conn,
		subject: cfg.Subject,
		nodeID:  nodeID,
		dedupe:  newDedupe(cfg.DedupeWindow),
		stopCh:  make(chan struct{}),
	}
	inv.startSweeper(cfg.DedupeWindow)

	log.Info("📡 NATS invalidator готов: %s (subject: %s)", cfg.URL, cfg.Subject)
	return inv, nil
}

// Publish сообщает, что тайл перезаписан
func (n *NATSInvalidator) Publish(continent string, x, y int) error {
	data, err := encodeInvalidation(TileInvalidation{
		Continent: continent,
		X:         x,
		Y:         y,
		Timestamp: time.Now(),
		NodeID:    n.nodeID,
	})
	if err != nil {
		n.errors.Add(1)
		return err
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		n.errors.Add(1)
		return fmt.Errorf("ошибка публикации инвалидации: %w", err)
	}
	n.published.Add(1)
	return nil
}

// Flush дожидается отправки буфера публикаций
func (n *NATSInvalidator) Flush() error {
	return n.conn.Flush()
}

// Subscribe регистрирует обработчик; собственные сообщения и повторы пропускаются
func (n *NATSInvalidator) Subscribe(handler InvalidationHandler) error {
	if n.sub != nil {
		return fmt.Errorf("подписка на инвалидации уже существует")
	}
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		n.received.Add(1)
		inv, err := decodeInvalidation(msg.Data)
		if err != nil {
			n.errors.Add(1)
			logging.GetStorageLogger().Warn("⚠️ %v", err)
			return
		}
		if inv.NodeID == n.nodeID || !n.dedupe.admit(inv.key()) {
			return
		}
		handler(inv)
	})
	if err != nil {
		return fmt.Errorf("ошибка подписки на инвалидации: %w", err)
	}
	n.sub = sub
	return nil
}

// InvalidatorStats счётчики invalidator
type InvalidatorStats struct {
	Published int64
	Received  int64
	Errors    int64
	Connected bool
}

func (n *NATSInvalidator) Stats() InvalidatorStats {
	return InvalidatorStats{
		Published: n.published.Load(),
		Received:  n.received.Load(),
		Errors:    n.errors.Load(),
		Connected: n.conn.IsConnected(),
	}
}

// Close отписывается и закрывает соединение
func (n *NATSInvalidator) Close() error {
	close(n.stopCh)
	n.wg.Wait()
	if n.sub != nil {
		_ = n.sub.Unsubscribe()
	}
	n.conn.Close()
	return nil
}

func (n *NATSInvalidator) startSweeper(every time.Duration) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.dedupe.sweep()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func encodeInvalidation(m TileInvalidation) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации инвалидации: %w", err)
	}
	return data, nil
}

func decodeInvalidation(data []byte) (TileInvalidation, error) {
	var m TileInvalidation
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("некорректное сообщение инвалидации: %w", err)
	}
	if m.Continent == "" {
		return m, fmt.Errorf("некорректное сообщение инвалидации: пустой континент")
	}
	return m, nil
}
