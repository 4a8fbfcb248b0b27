package timer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// manualClock advances only when told to, keeping assertions exact.
type manualClock struct {
	now decimal.Decimal
}

func (c *manualClock) advance(ms int64) {
	c.now = c.now.Add(decimal.NewFromInt(ms))
}

func (c *manualClock) read() decimal.Decimal {
	return c.now
}

func TestCooperativeExcludesPausedIntervals(t *testing.T) {
	clock := &manualClock{now: decimal.Zero}
	tm := New(clock.read)

	tm.Start()
	clock.advance(10)
	tm.Pause()
	clock.advance(100)
	tm.Resume()
	clock.advance(5)

	cooperative, wall, err := tm.Stop()
	require.NoError(t, err)
	require.True(t, cooperative.Equal(decimal.NewFromInt(15)), "cooperative=%s", cooperative)
	require.True(t, wall.Equal(decimal.NewFromInt(115)), "wall=%s", wall)
	require.True(t, cooperative.LessThanOrEqual(wall))
}

func TestStopWhileStoppedIsAnError(t *testing.T) {
	tm := New((&manualClock{now: decimal.Zero}).read)
	_, _, err := tm.Stop()
	require.Error(t, err)
}

func TestIllegalTransitionsAreNoOps(t *testing.T) {
	clock := &manualClock{now: decimal.Zero}
	tm := New(clock.read)

	tm.Pause()
	tm.Resume()
	tm.Start()
	clock.advance(5)
	tm.Start()
	tm.Resume()
	clock.advance(5)

	cooperative, wall, err := tm.Stop()
	require.NoError(t, err)
	require.True(t, cooperative.Equal(decimal.NewFromInt(10)), "cooperative=%s", cooperative)
	require.True(t, wall.Equal(decimal.NewFromInt(10)), "wall=%s", wall)
}

func TestStartResetsAccumulator(t *testing.T) {
	clock := &manualClock{now: decimal.Zero}
	tm := New(clock.read)

	tm.Start()
	clock.advance(30)
	_, _, err := tm.Stop()
	require.NoError(t, err)

	tm.Start()
	clock.advance(7)
	cooperative, wall, err := tm.Stop()
	require.NoError(t, err)
	require.True(t, cooperative.Equal(decimal.NewFromInt(7)), "cooperative=%s", cooperative)
	require.True(t, wall.Equal(decimal.NewFromInt(7)), "wall=%s", wall)
}
