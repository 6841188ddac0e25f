package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerTileStore хранит закодированные тайлы в BadgerDB
type BadgerTileStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

var _ TileStore = (*BadgerTileStore)(nil)

// NewBadgerTileStore открывает хранилище в каталоге dbPath
func NewBadgerTileStore(dbPath string) (*BadgerTileStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerTileStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

func tileKey(continent string, x, y int) []byte {
	return []byte(fmt.Sprintf("tile:%s:%d:%d", continent, x, y))
}

func continentPrefix(continent string) []byte {
	return []byte(fmt.Sprintf("tile:%s:", continent))
}

// Close закрывает хранилище
func (s *BadgerTileStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}

// Save сохраняет тайл
func (s *BadgerTileStore) Save(_ context.Context, continent string, x, y int, data []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tileKey(continent, x, y), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load читает тайл. Отсутствующий ключ - ErrTileNotFound.
func (s *BadgerTileStore) Load(ctx context.Context, continent string, x, y int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tileKey(continent, x, y))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(continent, x, y)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

// Exists проверяет наличие ключа без чтения значения
func (s *BadgerTileStore) Exists(continent string, x, y int) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return false
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(tileKey(continent, x, y))
		return err
	})
	return err == nil
}

// Count возвращает количество тайлов континента
func (s *BadgerTileStore) Count(continent string) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return 0, ErrStoreClosed
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := continentPrefix(continent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка обхода BadgerDB: %w", err)
	}
	return count, nil
}
