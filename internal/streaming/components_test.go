package streaming

import (
	"testing"

	"github.com/annel0/terrain-streamer/internal/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleTransitions(t *testing.T) {
	lc := newLifecycle()
	c := terrain.TileCoord{X: 1, Y: 2}

	assert.Equal(t, StageUnloaded, lc.stage(c))
	assert.False(t, lc.transition(c, StagePending, StageLoading))
	require.True(t, lc.transition(c, StageUnloaded, StagePending))
	assert.False(t, lc.transition(c, StageUnloaded, StagePending))
	require.True(t, lc.transition(c, StagePending, StageLoading))
	assert.Equal(t, StageLoading, lc.stage(c))

	require.True(t, lc.transition(c, StageLoading, StageUnloaded))
	assert.Empty(t, lc.snapshot())
}

func TestLifecycleOwnedTransitions(t *testing.T) {
	lc := newLifecycle()
	c := terrain.TileCoord{X: 8, Y: 8}

	require.True(t, lc.claim(c, 1))
	assert.False(t, lc.claim(c, 2), "занятую координату нельзя перехватить")
	assert.Equal(t, uint64(1), lc.generationOf(c))

	// Мир сменился: запись пересоздана новым поколением
	lc.resetExcept(StageUnloading)
	require.True(t, lc.claim(c, 2))

	assert.False(t, lc.transitionOwned(c, 1, StagePending, StageLoading), "старое поколение не двигает чужую запись")
	require.True(t, lc.transitionOwned(c, 2, StagePending, StageLoading))
	require.True(t, lc.transition(c, StageLoading, StageLoaded))
	assert.Equal(t, uint64(2), lc.generationOf(c), "transition сохраняет поколение")

	assert.False(t, lc.transitionOwned(c, 1, StageLoaded, StageUnloaded))
	require.True(t, lc.transitionOwned(c, 2, StageLoaded, StageUnloaded))
	assert.Equal(t, uint64(0), lc.generationOf(c))
}

func TestLifecycleResetExcept(t *testing.T) {
	lc := newLifecycle()
	a := terrain.TileCoord{X: 1}
	b := terrain.TileCoord{X: 2}
	lc.transition(a, StageUnloaded, StagePending)
	lc.transition(b, StageUnloaded, StageUnloading)

	lc.resetExcept(StageUnloading)
	assert.Equal(t, StageUnloaded, lc.stage(a))
	assert.Equal(t, StageUnloading, lc.stage(b))
	assert.Equal(t, map[Stage]int{StageUnloading: 1}, lc.counts())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "Active", StageActive.String())
	assert.Equal(t, "Unknown", Stage(42).String())
}

func TestPendingQueueRemoveIf(t *testing.T) {
	var q pendingQueue
	for x := 0; x < 6; x++ {
		q.push(loadRequest{coord: terrain.TileCoord{X: x}})
	}

	removed := q.removeIf(func(r loadRequest) bool { return r.coord.X%2 == 0 })
	assert.Len(t, removed, 3)
	assert.Equal(t, []terrain.TileCoord{{X: 1}, {X: 3}, {X: 5}}, q.coords())

	r, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, 1, r.coord.X)
	assert.Len(t, q.clear(), 2)
	_, ok = q.pop()
	assert.False(t, ok)
}

func TestCompletedBufferFIFO(t *testing.T) {
	var b completedBuffer
	assert.Nil(t, b.pop())

	first := &LoadedTile{Raw: terrain.NewFlatTile(terrain.TileCoord{X: 1}, 0)}
	second := &LoadedTile{Raw: terrain.NewFlatTile(terrain.TileCoord{X: 2}, 0)}
	b.push(first)
	b.push(second)

	assert.Equal(t, 2, b.len())
	assert.Same(t, first, b.pop())
	assert.Same(t, second, b.pop())
}

func TestActiveTableDuplicateInsert(t *testing.T) {
	table := NewActiveTable()
	c := terrain.TileCoord{X: 4, Y: 4}
	tile := &ActiveTile{Coord: c, Raw: terrain.NewFlatTile(c, 0)}

	require.NoError(t, table.Insert(c, tile))
	assert.ErrorIs(t, table.Insert(c, tile), ErrTileAlreadyActive)

	got, ok := table.TryGet(c)
	require.True(t, ok)
	assert.Same(t, tile, got)

	visited := 0
	table.ForEach(func(*ActiveTile) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)

	removed, ok := table.Remove(c)
	require.True(t, ok)
	assert.Same(t, tile, removed)
	_, ok = table.Remove(c)
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestProgressTrackerSettle(t *testing.T) {
	rec := &progressRecorder{}
	p := newProgressTracker(rec)
	a := terrain.TileCoord{X: 1}
	b := terrain.TileCoord{X: 2}

	p.begin(1, []terrain.TileCoord{a, b})
	assert.True(t, p.isActive())

	p.step(1, a, unitsPerTile+100)
	assert.InDelta(t, 0.5, p.fraction(), 1e-9)

	// Чужое поколение и неотслеживаемые тайлы не влияют на прогресс
	p.step(2, b, 10)
	p.step(1, terrain.TileCoord{X: 9}, 10)
	assert.InDelta(t, 0.5, p.fraction(), 1e-9)

	p.step(1, b, 10)
	p.settle(1, b)
	assert.False(t, p.isActive())
	assert.True(t, p.takeFinished())
	assert.False(t, p.takeFinished())

	values := rec.snapshot()
	assert.Equal(t, 1.0, values[len(values)-1])

	// После завершения шаги игнорируются
	p.step(1, a, 1)
	assert.Equal(t, 1.0, p.fraction())
}

func TestProgressTrackerEmpty(t *testing.T) {
	p := newProgressTracker(nil)
	p.begin(3, nil)
	assert.False(t, p.isActive())
	assert.True(t, p.takeFinished())
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{Radius: 3}.withDefaults()
	assert.Equal(t, 3, o.Radius)
	assert.Equal(t, DefaultOptions().LoadPollInterval, o.LoadPollInterval)
	assert.Equal(t, 1, o.MaxPromotionsPerFrame)
}
