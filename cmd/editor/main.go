package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/terrain-streamer/internal/ambient"
	"github.com/annel0/terrain-streamer/internal/config"
	"github.com/annel0/terrain-streamer/internal/eventbus"
	"github.com/annel0/terrain-streamer/internal/logging"
	"github.com/annel0/terrain-streamer/internal/observability"
	"github.com/annel0/terrain-streamer/internal/render"
	"github.com/annel0/terrain-streamer/internal/storage"
	"github.com/annel0/terrain-streamer/internal/streaming"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	runFor := flag.Duration("duration", 0, "время работы, 0 - до сигнала")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️ Ошибка чтения .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logOpts := logging.DefaultOptions()
	logOpts.Dir = cfg.Logging.Dir
	logOpts.ConsoleLevel = logging.ParseLevel(cfg.Logging.ConsoleLevel)
	logOpts.FileLevel = logging.ParseLevel(cfg.Logging.FileLevel)
	if err := logging.InitDefaultLoggerWithOptions("editor", logOpts); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().Configure(logOpts, cfg.Logging.Components)
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🗺️ Запуск headless-редактора ландшафта")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.TelemetryOptions{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			logging.Warn("⚠️ Трассировка отключена: %v", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// === МЕТРИКИ ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsSrv := startMetricsServer(cfg.Metrics.GetMetricsPort(), registry)

	// === ШИНА СОБЫТИЙ ===
	bus, err := openEventBus(&cfg.EventBus)
	if err != nil {
		logging.Error("❌ Ошибка создания шины событий: %v", err)
		os.Exit(1)
	}
	defer bus.Close()

	busMetrics := eventbus.NewMetricsExporter(bus, registry)
	busMetrics.Start()
	defer busMetrics.Stop()

	if sub, err := eventbus.StartLoggingListener(bus, eventbus.Filter{}); err == nil {
		defer sub.Unsubscribe()
	}

	// === ИСТОЧНИК ТАЙЛОВ ===
	store, err := openTileStore(&cfg.Storage)
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища тайлов: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	cached, err := storage.NewCachedProvider(store, int64(cfg.Storage.GetCacheMaxCostMB())<<20)
	if err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
	defer cached.Close()

	if cfg.EventBus.URL != "" {
		inv, err := storage.NewNATSInvalidator(storage.InvalidatorConfig{URL: cfg.EventBus.URL}, "editor-"+uuid.NewString()[:8])
		if err != nil {
			logging.Warn("⚠️ Инвалидация кэша тайлов недоступна: %v", err)
		} else {
			defer inv.Close()
			if err := inv.Subscribe(func(m storage.TileInvalidation) {
				cached.Invalidate(m.Continent, m.X, m.Y)
				logging.Debug("🧹 Тайл %s [%d,%d] сброшен из кэша (%s)", m.Continent, m.X, m.Y, m.NodeID)
			}); err != nil {
				logging.Warn("⚠️ %v", err)
			}
		}
	}

	// === ПОДКАЧКА ===
	factory := render.NewHeadlessFactory()
	clock := ambient.NewClock(ambient.DefaultDayPeriod)

	manager, err := streaming.NewManager(streaming.OptionsFromConfig(&cfg.Streaming), streaming.Dependencies{
		Provider:   cached,
		Factory:    factory,
		Progress:   newProgressLogger(),
		Ambient:    clock,
		Bus:        bus,
		Registerer: registry,
		Logger:     logging.GetStreamingLogger(),
	})
	if err != nil {
		logging.Error("❌ Ошибка создания менеджера подкачки: %v", err)
		os.Exit(1)
	}
	if err := manager.Start(ctx); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}

	monitor, err := observability.NewProcessMonitor()
	if err != nil {
		logging.Warn("⚠️ Статистика процесса недоступна: %v", err)
	}

	cam := newCamera(&cfg.Camera)
	manager.EnterWorld(cfg.Camera.Continent, cam.position.XY())

	app := &editor{
		manager: manager,
		camera:  cam,
		factory: factory,
		cache:   cached,
		clock:   clock,
		monitor: monitor,
	}
	app.run(ctx, *runFor)

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Завершение работы...")
	if err := manager.Shutdown(); err != nil {
		logging.Error("❌ Ошибка остановки подкачки: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}

	s := factory.Stats()
	logging.Info("👋 Редактор остановлен: буферов создано %d, освобождено %d, утечек %d",
		s.Uploads, s.Releases, s.Live)
}

func startMetricsServer(port int, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}

func openEventBus(cfg *config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 In-memory шина событий (capacity=%d)", cfg.Capacity)
		return eventbus.NewMemoryBus(cfg.Capacity), nil
	}

	retention := time.Duration(cfg.Retention) * time.Hour
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	if err != nil {
		return nil, err
	}
	logging.Info("📨 Шина событий NATS JetStream %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}

func openTileStore(cfg *config.StorageConfig) (storage.TileStore, error) {
	storeLog := logging.GetStorageLogger()

	switch cfg.Backend {
	case "badger":
		store, err := storage.NewBadgerTileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		storeLog.Info("💾 Тайлы читаются из BadgerDB %s", cfg.Path)
		return store, nil
	case "dir", "":
		storeLog.Info("💾 Тайлы читаются из каталога %s", cfg.Path)
		return storage.NewFileTileProvider(cfg.Path), nil
	default:
		return nil, fmt.Errorf("неизвестный backend хранилища: %s", cfg.Backend)
	}
}
