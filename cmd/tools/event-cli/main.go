package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/streaming"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("url", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "TERRAIN", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		session    = flag.String("session", "", "World session filter")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m)")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
	)
	flag.Parse()

	if *command == "types" {
		showTypes()
		return
	}

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	switch *command {
	case "tail":
		if err := tailEvents(bus, &TailOptions{
			EventTypes: parseStringList(*eventTypes),
			Session:    *session,
			Since:      *since,
			Limit:      *limit,
			Follow:     *follow,
		}); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(bus); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
}

type TailOptions struct {
	EventTypes []string
	Session    string
	Since      string
	Limit      int
	Follow     bool
}

// tailEvents выводит события из стрима
func tailEvents(bus *eventbus.JetStreamBus, opts *TailOptions) error {
	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", opts.Limit, opts.Follow)

	startTime, err := parseSinceTime(opts.Since, time.Now())
	if err != nil {
		return fmt.Errorf("invalid since time: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan *eventbus.Envelope, 64)
	filter := eventbus.Filter{Types: opts.EventTypes}
	if opts.Session != "" {
		filter.Sessions = []string{opts.Session}
	}
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		if ev.Timestamp.Before(startTime) {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	// Без follow выходим, когда история закончилась
	idle := time.NewTimer(2 * time.Second)
	defer idle.Stop()

	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", eventCount)
			return nil
		case <-idle.C:
			if !opts.Follow {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		case ev := <-events:
			printEvent(ev)
			eventCount++
			if !opts.Follow && eventCount >= opts.Limit {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(2 * time.Second)
		}
	}
}

// showStats выводит состояние стрима
func showStats(bus *eventbus.JetStreamBus) error {
	fmt.Println("📊 Stream statistics")

	state, err := bus.StreamState()
	if err != nil {
		return err
	}

	fmt.Printf("Messages: %d\n", state.Msgs)
	fmt.Printf("Bytes: %d\n", state.Bytes)
	fmt.Printf("Consumers: %d\n", state.Consumers)
	if state.Msgs > 0 {
		fmt.Printf("Period: %s - %s\n", state.FirstTime.Format(timeFormat), state.LastTime.Format(timeFormat))
	}
	return nil
}

// showTypes выводит типы событий подкачки
func showTypes() {
	fmt.Println("📋 Available event types")
	for _, t := range eventbus.AllTypes {
		fmt.Printf("  %s\n", t)
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	timestamp := ev.Timestamp.Format("15:04:05")
	fmt.Printf("[%s] %s [%s] session=%s %s\n", timestamp, ev.Source, ev.EventType, ev.Session, ev.ID)

	// Добавляем детали в зависимости от типа события
	switch ev.EventType {
	case eventbus.TypeInitialLoadDone:
		var entry streaming.EntryEvent
		if err := ev.Decode(&entry); err == nil {
			fmt.Printf("  Entry: %s (%.1f, %.1f, %.1f) grounded=%v\n",
				entry.Continent, entry.X, entry.Y, entry.Z, entry.Grounded)
		}
	default:
		var tile streaming.TileEvent
		if err := ev.Decode(&tile); err == nil {
			fmt.Printf("  Tile: (%d,%d) index=%d", tile.X, tile.Y, tile.Index)
			if tile.Error != "" {
				fmt.Printf(" error=%s", tile.Error)
			}
			fmt.Println()
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return time.Time{}, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
