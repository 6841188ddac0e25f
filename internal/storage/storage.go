package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTileNotFound тайла нет в хранилище
	ErrTileNotFound = errors.New("тайл не найден")
	// ErrStoreClosed хранилище закрыто
	ErrStoreClosed = errors.New("хранилище не готово")
)

// TileSource читает закодированные тайлы континента
type TileSource interface {
	Exists(continent string, x, y int) bool
	Load(ctx context.Context, continent string, x, y int) ([]byte, error)
}

// TileStore источник с возможностью записи
type TileStore interface {
	TileSource
	Save(ctx context.Context, continent string, x, y int, data []byte) error
	Close() error
}

func notFound(continent string, x, y int) error {
	return fmt.Errorf("%w: %s (%d,%d)", ErrTileNotFound, continent, x, y)
}
