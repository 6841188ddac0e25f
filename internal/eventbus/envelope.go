package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Типы событий подсистемы ландшафта
const (
	TypeTileLoaded      = "TileLoaded"
	TypeTileLoadFailed  = "TileLoadFailed"
	TypeTileEvicted     = "TileEvicted"
	TypeTileChanged     = "TileChanged"
	TypeInitialLoadDone = "InitialLoadDone"
)

// AllTypes перечисляет известные типы событий
var AllTypes = []string{TypeTileLoaded, TypeTileLoadFailed, TypeTileEvicted, TypeTileChanged, TypeInitialLoadDone}

// Приоритеты. События ниже PriorityDropBelow отбрасываются при переполнении.
const (
	PriorityTile      = 1
	PriorityDropBelow = 5
	PriorityWorld     = 7
)

// Envelope контейнер события
type Envelope struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"ts"`
	Source    string            `json:"source"`
	EventType string            `json:"type"`
	Version   int               `json:"v"`
	Session   string            `json:"session,omitempty"` // сессия мира (EnterWorld)
	Priority  int               `json:"priority"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"meta,omitempty"`
}

// NewEnvelope сериализует payload и заполняет служебные поля
func NewEnvelope(eventType, source, session string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация события %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Session:   session,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку в v
func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Filter отбирает события; пустое поле пропускает всё
type Filter struct {
	Types    []string
	Sources  []string
	Sessions []string
}

// Match проверяет событие по всем полям фильтра
func (f Filter) Match(ev *Envelope) bool {
	return matchAny(ev.EventType, f.Types) &&
		matchAny(ev.Source, f.Sources) &&
		matchAny(ev.Session, f.Sessions)
}

func matchAny(val string, allowed []string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, val)
}

type Subscription interface {
	Unsubscribe()
}

type Handler func(ctx context.Context, ev *Envelope)

// Stats счётчики шины
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
	ByType    map[string]uint64 // опубликовано по типам
}

// EventBus абстракция шины событий
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}
