package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Компоненты с собственными файлами логов
const (
	ComponentStreaming = "streaming"
	ComponentStorage   = "storage"
	ComponentEventBus  = "eventbus"
)

// LoggerManager выдаёт логгеры компонентов. Уровень консоли можно
// переопределить для отдельного компонента.
type LoggerManager struct {
	mu        sync.Mutex
	loggers   map[string]*Logger
	opts      Options
	overrides map[string]LogLevel
}

var (
	defaultManager *LoggerManager
	managerOnce    sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		opts:      DefaultOptions(),
		overrides: make(map[string]LogLevel),
	}
}

// GetLoggerManager возвращает менеджер процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		defaultManager = newLoggerManager()
	})
	return defaultManager
}

// Configure задаёт базовые настройки и уровни консоли по компонентам.
// Уже созданные логгеры получают новый уровень сразу.
func (lm *LoggerManager) Configure(opts Options, components map[string]string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.opts = opts
	lm.overrides = make(map[string]LogLevel, len(components))
	for name, level := range components {
		lm.overrides[name] = ParseLevel(level)
	}
	for name, l := range lm.loggers {
		l.SetLevels(lm.consoleLevel(name), lm.opts.FileLevel)
	}
}

func (lm *LoggerManager) consoleLevel(component string) LogLevel {
	if lvl, ok := lm.overrides[component]; ok {
		return lvl
	}
	return lm.opts.ConsoleLevel
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}

	opts := lm.opts
	opts.ConsoleLevel = lm.consoleLevel(component)
	l, err := NewLoggerWithOptions(component, opts)
	if err != nil {
		return nil, fmt.Errorf("логгер компонента %s: %w", component, err)
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger при ошибке файла откатывается на консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err != nil {
		lm.mu.Lock()
		level := lm.consoleLevel(component)
		lm.mu.Unlock()
		return NewConsoleLogger(component, level)
	}
	return l
}

// Components перечисляет созданные логгеры
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetLogLevel меняет уровни уже созданного логгера
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.Lock()
	l, ok := lm.loggers[component]
	if ok {
		lm.overrides[component] = consoleLevel
	}
	lm.mu.Unlock()

	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}
	l.SetLevels(consoleLevel, fileLevel)
	return nil
}

// CloseAll закрывает файлы всех логгеров
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for name, l := range lm.loggers {
		if err := l.Close(); err != nil {
			lastErr = fmt.Errorf("закрытие логгера %s: %w", name, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return lastErr
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetStreamingLogger() *Logger { return GetComponentLogger(ComponentStreaming) }

func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }

func GetEventBusLogger() *Logger { return GetComponentLogger(ComponentEventBus) }
