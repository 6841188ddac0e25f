package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/storage"
	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// region прямоугольник сетки тайлов, границы включительно
type region struct {
	x0, y0, x1, y1 int
}

func (r region) coords() []terrain.TileCoord {
	var out []terrain.TileCoord
	for y := r.y0; y <= r.y1; y++ {
		for x := r.x0; x <= r.x1; x++ {
			c := terrain.TileCoord{X: x, Y: y}
			if c.Valid() {
				out = append(out, c)
			}
		}
	}
	return out
}

type options struct {
	continent string
	area      region
	seed      int64
	baseline  float64
	amplitude float64
	compress  bool
	workers   int
	notify    tilePublisher
}

// tilePublisher сообщает подписчикам о перезаписанном тайле
type tilePublisher interface {
	Publish(continent string, x, y int) error
}

func main() {
	var (
		backend   = flag.String("backend", "dir", "куда писать: dir или badger")
		out       = flag.String("out", "data", "каталог данных")
		continent = flag.String("continent", "Azeroth", "имя континента")
		x0        = flag.Int("x0", 28, "левая граница")
		y0        = flag.Int("y0", 28, "нижняя граница")
		x1        = flag.Int("x1", 36, "правая граница")
		y1        = flag.Int("y1", 36, "верхняя граница")
		seed      = flag.Int64("seed", 42, "зерно шума")
		baseline  = flag.Float64("baseline", 0, "базовая высота")
		amplitude = flag.Float64("amplitude", 120, "амплитуда рельефа")
		compress  = flag.Bool("zstd", true, "сжимать тайлы zstd")
		workers   = flag.Int("workers", runtime.NumCPU(), "параллельных генераторов")
		natsURL   = flag.String("nats", "", "NATS для уведомлений об обновлённых тайлах")
	)
	flag.Parse()

	if err := logging.InitDefaultLogger("tilegen"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	store, err := openStore(*backend, *out)
	if err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		continent: *continent,
		area:      region{x0: *x0, y0: *y0, x1: *x1, y1: *y1},
		seed:      *seed,
		baseline:  *baseline,
		amplitude: *amplitude,
		compress:  *compress,
		workers:   *workers,
	}

	if *natsURL != "" {
		inv, err := storage.NewNATSInvalidator(storage.InvalidatorConfig{URL: *natsURL}, "tilegen-"+uuid.NewString()[:8])
		if err != nil {
			logging.Warn("⚠️ Уведомления отключены: %v", err)
		} else {
			defer inv.Close()
			defer inv.Flush()
			opts.notify = inv
		}
	}

	start := time.Now()
	n, err := generate(ctx, store, opts)
	if err != nil {
		logging.Error("❌ Генерация прервана после %d тайлов: %v", n, err)
		os.Exit(1)
	}
	logging.Info("✅ Сгенерировано %d тайлов континента %s за %v", n, opts.continent, time.Since(start))

	if bs, ok := store.(*storage.BadgerTileStore); ok {
		if total, err := bs.Count(opts.continent); err == nil {
			logging.Info("💾 В BadgerDB тайлов континента: %d", total)
		}
	}
}

func openStore(backend, path string) (storage.TileStore, error) {
	switch backend {
	case "badger":
		return storage.NewBadgerTileStore(path)
	case "dir":
		return storage.NewFileTileProvider(path), nil
	default:
		return nil, fmt.Errorf("неизвестный backend: %s", backend)
	}
}

// generate строит тайлы области и сохраняет их в store
func generate(ctx context.Context, store storage.TileStore, opts options) (int, error) {
	gen := terrain.NewGenerator(opts.seed, opts.baseline, opts.amplitude)
	coords := opts.area.coords()
	logging.Info("🏔️ Генерация %d тайлов (seed=%d, workers=%d)", len(coords), opts.seed, opts.workers)

	g, gctx := errgroup.WithContext(ctx)
	if opts.workers > 0 {
		g.SetLimit(opts.workers)
	}

	var done atomic.Int32
	for _, c := range coords {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := terrain.Encode(gen.Generate(c), terrain.EncodeOptions{Compress: opts.compress})
			if err != nil {
				return fmt.Errorf("кодирование %s: %w", c, err)
			}
			if err := store.Save(gctx, opts.continent, c.X, c.Y, data); err != nil {
				return fmt.Errorf("сохранение %s: %w", c, err)
			}
			if opts.notify != nil {
				if err := opts.notify.Publish(opts.continent, c.X, c.Y); err != nil {
					logging.Warn("⚠️ Уведомление о тайле %s не отправлено: %v", c, err)
				}
			}
			n := done.Add(1)
			logging.Debug("Тайл %s записан (%d байт), %d/%d", c, len(data), n, len(coords))
			return nil
		})
	}

	err := g.Wait()
	return int(done.Load()), err
}
