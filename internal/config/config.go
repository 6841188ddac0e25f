package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации редактора.
type Config struct {
	Streaming StreamingConfig `yaml:"streaming"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Camera    CameraConfig    `yaml:"camera"`
}

// StreamingConfig параметры подкачки тайлов
type StreamingConfig struct {
	Radius                int `yaml:"radius"`
	LoadPollMillis        int `yaml:"load_poll_ms"`
	UnloadIntervalMillis  int `yaml:"unload_interval_ms"`
	AmbientIntervalMillis int `yaml:"ambient_interval_ms"`
	MaxPromotionsPerFrame int `yaml:"max_promotions_per_frame"`
}

// StorageConfig источник данных тайлов
type StorageConfig struct {
	Backend        string `yaml:"backend"` // "dir" или "badger"
	Path           string `yaml:"path"`
	CacheMaxCostMB int    `yaml:"cache_max_cost_mb"`
}

type LoggingConfig struct {
	Dir          string            `yaml:"dir"`
	ConsoleLevel string            `yaml:"console_level"`
	FileLevel    string            `yaml:"file_level"`
	Components   map[string]string `yaml:"components"` // уровень консоли по компонентам
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// CameraConfig сценарий движения камеры для headless-режима
type CameraConfig struct {
	Continent string  `yaml:"continent"`
	EntryX    float64 `yaml:"entry_x"`
	EntryY    float64 `yaml:"entry_y"`
	Heading   float64 `yaml:"heading_degrees"`
	Speed     float64 `yaml:"speed"` // мировых единиц в секунду
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		// Числовые параметры подкачки берутся через геттеры: config -> env -> default
		Storage: StorageConfig{
			Backend: "dir",
			Path:    "data",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
		EventBus: EventBusConfig{
			Stream:    "TERRAIN",
			Retention: 24,
			Capacity:  1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "terrain-editor",
			SampleRatio: 1,
		},
		Camera: CameraConfig{
			Continent: "Azeroth",
			EntryX:    32*533.3333 + 100,
			EntryY:    32*533.3333 + 100,
			Speed:     120,
		},
	}
}

// LoadPollInterval интервал ожидания загрузчика при пустой очереди
func (s *StreamingConfig) LoadPollInterval() time.Duration {
	return time.Duration(getIntWithEnvFallback(s.LoadPollMillis, "TERRAIN_LOAD_POLL_MS", 30)) * time.Millisecond
}

// UnloadInterval период работы выгрузчика
func (s *StreamingConfig) UnloadInterval() time.Duration {
	return time.Duration(getIntWithEnvFallback(s.UnloadIntervalMillis, "TERRAIN_UNLOAD_INTERVAL_MS", 500)) * time.Millisecond
}

// AmbientInterval период обновления окружения (небо, освещение)
func (s *StreamingConfig) AmbientInterval() time.Duration {
	return time.Duration(getIntWithEnvFallback(s.AmbientIntervalMillis, "TERRAIN_AMBIENT_INTERVAL_MS", 100)) * time.Millisecond
}

// GetRadius радиус окна подкачки в тайлах
func (s *StreamingConfig) GetRadius() int {
	return getIntWithEnvFallback(s.Radius, "TERRAIN_RADIUS", 2)
}

// GetMaxPromotionsPerFrame сколько загруженных тайлов активировать за кадр
func (s *StreamingConfig) GetMaxPromotionsPerFrame() int {
	return getIntWithEnvFallback(s.MaxPromotionsPerFrame, "TERRAIN_PROMOTIONS_PER_FRAME", 1)
}

// GetCacheMaxCostMB объём кэша сырых тайлов
func (s *StorageConfig) GetCacheMaxCostMB() int {
	return getIntWithEnvFallback(s.CacheMaxCostMB, "TERRAIN_CACHE_MB", 64)
}

// GetMetricsPort возвращает порт Prometheus
func (m *MetricsConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(m.Port, "TERRAIN_METRICS_PORT", 2112)
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пробует ENV TERRAIN_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TERRAIN_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	return cfg, nil
}
