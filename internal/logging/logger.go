package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации, по умолчанию INFO
func ParseLevel(s string) LogLevel {
	switch s {
	case "trace", "TRACE":
		return TRACE
	case "debug", "DEBUG":
		return DEBUG
	case "warn", "WARN", "warning":
		return WARN
	case "error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case TRACE:
		return logrus.TraceLevel
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Options настройки файлового вывода
type Options struct {
	Dir          string // Директория логов, по умолчанию "logs"
	MaxSizeMB    int    // Размер файла до ротации
	MaxBackups   int    // Количество архивных файлов
	ConsoleLevel LogLevel
	FileLevel    LogLevel
}

// DefaultOptions возвращает настройки по умолчанию
func DefaultOptions() Options {
	return Options{
		Dir:          "logs",
		MaxSizeMB:    50,
		MaxBackups:   5,
		ConsoleLevel: INFO,
		FileLevel:    TRACE,
	}
}

// Logger представляет логгер компонента: консоль + файл с ротацией
type Logger struct {
	component       string
	consoleLogger   *logrus.Logger
	fileLogger      *logrus.Logger
	file            io.Closer
	mu              sync.RWMutex
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// defaultLogger пишет только в stderr до вызова InitDefaultLogger
var (
	defaultLogger = NewConsoleLogger("default", INFO)
	defaultMu     sync.RWMutex
)

// NewConsoleLogger создаёт логгер без файлового вывода
func NewConsoleLogger(component string, level LogLevel) *Logger {
	console := logrus.New()
	console.SetOutput(os.Stderr)
	console.SetLevel(logrus.TraceLevel)
	console.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	return &Logger{
		component:       component,
		consoleLogger:   console,
		minConsoleLevel: level,
		minFileLevel:    ERROR,
	}
}

// NewLogger создаёт логгер компонента с настройками по умолчанию
func NewLogger(component string) (*Logger, error) {
	return NewLoggerWithOptions(component, DefaultOptions())
}

// NewLoggerWithOptions создаёт логгер, пишущий в <Dir>/<component>.log
func NewLoggerWithOptions(component string, opts Options) (*Logger, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, component+".log"),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}

	file := logrus.New()
	file.SetOutput(rotator)
	file.SetLevel(logrus.TraceLevel)
	file.SetFormatter(&logrus.JSONFormatter{})

	l := NewConsoleLogger(component, opts.ConsoleLevel)
	l.fileLogger = file
	l.file = rotator
	l.minFileLevel = opts.FileLevel
	return l, nil
}

// SetLevels меняет пороги консольного и файлового вывода
func (l *Logger) SetLevels(consoleLevel, fileLevel LogLevel) {
	l.mu.Lock()
	l.minConsoleLevel = consoleLevel
	l.minFileLevel = fileLevel
	l.mu.Unlock()
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.RLock()
	minConsole, minFile := l.minConsoleLevel, l.minFileLevel
	l.mu.RUnlock()

	message := fmt.Sprintf(format, args...)
	if level >= minConsole {
		l.consoleLogger.WithField("component", l.component).Log(level.logrus(), message)
	}
	if l.fileLogger != nil && level >= minFile {
		l.fileLogger.WithField("component", l.component).Log(level.logrus(), message)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// InitDefaultLogger инициализирует глобальный логгер приложения
func InitDefaultLogger(component string) error {
	return InitDefaultLoggerWithOptions(component, DefaultOptions())
}

// InitDefaultLoggerWithOptions инициализирует глобальный логгер с настройками
func InitDefaultLoggerWithOptions(component string, opts Options) error {
	l, err := NewLoggerWithOptions(component, opts)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер
func CloseDefaultLogger() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
	defaultLogger = NewConsoleLogger("default", INFO)
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Trace логирует сообщение уровня TRACE
func Trace(format string, args ...interface{}) { current().log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) { current().log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) { current().log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) { current().log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) { current().log(ERROR, format, args...) }
