package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileTileProvider хранит тайлы файлами World/Maps/<continent>/<continent>_<x>_<y>.tile
type FileTileProvider struct {
	root string
}

var _ TileStore = (*FileTileProvider)(nil)

func NewFileTileProvider(root string) *FileTileProvider {
	return &FileTileProvider{root: root}
}

// Path возвращает путь к файлу тайла
func (p *FileTileProvider) Path(continent string, x, y int) string {
	name := fmt.Sprintf("%s_%d_%d.tile", continent, x, y)
	return filepath.Join(p.root, "World", "Maps", continent, name)
}

func (p *FileTileProvider) Exists(continent string, x, y int) bool {
	info, err := os.Stat(p.Path(continent, x, y))
	return err == nil && info.Mode().IsRegular()
}

func (p *FileTileProvider) Load(ctx context.Context, continent string, x, y int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.Path(continent, x, y))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(continent, x, y)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения тайла: %w", err)
	}
	return data, nil
}

// Save атомарно записывает тайл через временный файл
func (p *FileTileProvider) Save(ctx context.Context, continent string, x, y int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := p.Path(continent, x, y)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи тайла: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи тайла: %w", err)
	}
	return nil
}

func (p *FileTileProvider) Close() error { return nil }
