package streaming

import (
	"sync"

	"github.com/annel0/terrain-streamer/internal/terrain"
)

// Stage стадия жизненного цикла координаты
type Stage int32

const (
	StageUnloaded Stage = iota
	StagePending
	StageLoading
	StageLoaded
	StageActive
	StageUnloading
)

func (s Stage) String() string {
	switch s {
	case StageUnloaded:
		return "Unloaded"
	case StagePending:
		return "Pending"
	case StageLoading:
		return "Loading"
	case StageLoaded:
		return "Loaded"
	case StageActive:
		return "Active"
	case StageUnloading:
		return "Unloading"
	default:
		return "Unknown"
	}
}

// stageEntry стадия и поколение мира, которому принадлежит запись
type stageEntry struct {
	stage      Stage
	generation uint64
}

// lifecycle реестр стадий. Отсутствие записи означает StageUnloaded.
// Все переходы - compare-and-set под собственным мьютексом.
type lifecycle struct {
	mu     sync.Mutex
	stages map[terrain.TileCoord]stageEntry
}

func newLifecycle() *lifecycle {
	return &lifecycle{stages: make(map[terrain.TileCoord]stageEntry)}
}

func (l *lifecycle) stage(c terrain.TileCoord) Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stages[c].stage
}

// generationOf поколение записи; для Unloaded - 0
func (l *lifecycle) generationOf(c terrain.TileCoord) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stages[c].generation
}

// claim переводит Unloaded в Pending и закрепляет координату за поколением
func (l *lifecycle) claim(c terrain.TileCoord, generation uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.stages[c]; ok {
		return false
	}
	l.stages[c] = stageEntry{stage: StagePending, generation: generation}
	return true
}

// transition переводит координату из from в to, если текущая стадия равна from.
// Поколение записи сохраняется.
func (l *lifecycle) transition(c terrain.TileCoord, from, to Stage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.stages[c]
	if e.stage != from {
		return false
	}
	l.apply(c, e, to)
	return true
}

// transitionOwned как transition, но только для записи поколения generation
func (l *lifecycle) transitionOwned(c terrain.TileCoord, generation uint64, from, to Stage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.stages[c]
	if !ok || e.stage != from || e.generation != generation {
		return false
	}
	l.apply(c, e, to)
	return true
}

func (l *lifecycle) apply(c terrain.TileCoord, e stageEntry, to Stage) {
	if to == StageUnloaded {
		delete(l.stages, c)
		return
	}
	e.stage = to
	l.stages[c] = e
}

// resetExcept сбрасывает в Unloaded все координаты, кроме стадии keep
func (l *lifecycle) resetExcept(keep Stage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for c, e := range l.stages {
		if e.stage != keep {
			delete(l.stages, c)
		}
	}
}

func (l *lifecycle) snapshot() map[terrain.TileCoord]Stage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[terrain.TileCoord]Stage, len(l.stages))
	for c, e := range l.stages {
		out[c] = e.stage
	}
	return out
}

// counts возвращает количество координат на каждой стадии, кроме Unloaded
func (l *lifecycle) counts() map[Stage]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[Stage]int)
	for _, e := range l.stages {
		out[e.stage]++
	}
	return out
}
