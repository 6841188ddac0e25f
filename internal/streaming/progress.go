package streaming

import (
	"sync"

	"github.com/annel0/terrain-streamer/internal/terrain"
)

// unitsPerTile проход декодирования (по единице на подчанк) плюс продвижение
const unitsPerTile = 2 * terrain.ChunksPerTile

// progressTracker считает прогресс начальной загрузки мира.
// После достижения итога отслеживание выключается до следующего begin.
type progressTracker struct {
	mu         sync.Mutex
	sink       ProgressSink
	generation uint64
	active     bool
	finished   bool
	total      int
	done       int
	perTile    map[terrain.TileCoord]int
}

func newProgressTracker(sink ProgressSink) *progressTracker {
	return &progressTracker{sink: sink}
}

// begin начинает отслеживание набора тайлов мира generation
func (p *progressTracker) begin(generation uint64, coords []terrain.TileCoord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation = generation
	p.perTile = make(map[terrain.TileCoord]int, len(coords))
	for _, c := range coords {
		p.perTile[c] = 0
	}
	p.total = len(p.perTile) * unitsPerTile
	p.done = 0
	p.active = true
	p.finished = false
	p.report()

	if p.total == 0 {
		p.complete()
	}
}

// step засчитывает n единиц тайла c, не больше его остатка
func (p *progressTracker) step(generation uint64, c terrain.TileCoord, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || generation != p.generation {
		return
	}
	cur, ok := p.perTile[c]
	if !ok {
		return
	}
	if remaining := unitsPerTile - cur; n > remaining {
		n = remaining
	}
	if n <= 0 {
		return
	}
	p.perTile[c] = cur + n
	p.done += n
	p.report()

	if p.done >= p.total {
		p.complete()
	}
}

// settle засчитывает остаток тайла, который уже не будет загружен
func (p *progressTracker) settle(generation uint64, c terrain.TileCoord) {
	p.step(generation, c, unitsPerTile)
}

// takeFinished возвращает true один раз после завершения начальной загрузки
func (p *progressTracker) takeFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.finished {
		return false
	}
	p.finished = false
	return true
}

func (p *progressTracker) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *progressTracker) fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 {
		return 1
	}
	return float64(p.done) / float64(p.total)
}

func (p *progressTracker) complete() {
	p.active = false
	p.finished = true
	p.perTile = nil
}

func (p *progressTracker) report() {
	if p.sink == nil {
		return
	}
	f := 1.0
	if p.total > 0 {
		f = float64(p.done) / float64(p.total)
	}
	p.sink.OnProgress(f)
}
