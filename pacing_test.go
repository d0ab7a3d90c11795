package gossipsim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaceAccounting(t *testing.T) {
	var ps PacingStats

	// a tick that finishes early with no debt sleeps out its budget
	nap := ps.pace(0.02, 0.1)
	assert.InDelta(t, 0.08, nap, 1e-12)
	assert.InDelta(t, 0.08, ps.TimeSleeping, 1e-12)
	assert.Zero(t, ps.SleepDebt)

	// an overrun is borrowed, not slept
	nap = ps.pace(0.3, 0.1)
	assert.Zero(t, nap)
	assert.InDelta(t, 0.2, ps.SleepDebt, 1e-12)

	// repayment is at most half of the idle time
	nap = ps.pace(0.02, 0.1)
	assert.InDelta(t, 0.04, nap, 1e-12)
	assert.InDelta(t, 0.16, ps.SleepDebt, 1e-12)
	assert.InDelta(t, 0.34, ps.TimeRunning, 1e-12)
	assert.InDelta(t, 0.12, ps.TimeSleeping, 1e-12)

	// a small debt is repaid in full
	ps = PacingStats{SleepDebt: 0.01}
	nap = ps.pace(0.0, 0.1)
	assert.InDelta(t, 0.09, nap, 1e-12)
	assert.Zero(t, ps.SleepDebt)
}

func TestRunRepaysDebtMonotonically(t *testing.T) {
	clock := newFakeClock()
	sim, ras := newTestSimulator(t, 1, 1, WithClock(clock))

	var debts []float64
	ras[0].onTick = func() {
		debts = append(debts, sim.Stats().SleepDebt)
		if len(debts) == 1 {
			clock.advance(300 * time.Millisecond)
		} else {
			clock.advance(20 * time.Millisecond)
		}
	}
	require.NoError(t, sim.Run(context.Background(), 2.0, 0.1))

	// debts[i] is the debt left after tick i-1
	require.Greater(t, len(debts), 7)
	assert.InDelta(t, 0.2, debts[1], 1e-9)
	for idx := 2; idx < len(debts); idx++ {
		require.LessOrEqual(t, debts[idx], debts[idx-1]+1e-12, "debt grew at tick %d", idx)
	}
	assert.InDelta(t, 0.0, sim.Stats().SleepDebt, 1e-9)

	stats := sim.Stats()
	assert.InDelta(t, 0.3+0.02*float64(len(debts)-1), stats.TimeRunning, 1e-9)
	assert.Equal(t, int64(len(debts)), sim.Time())

	var slept time.Duration
	for _, nap := range clock.naps {
		slept += nap
	}
	assert.InDelta(t, stats.TimeSleeping, slept.Seconds(), 1e-6)
}

func TestRunStopsAfterDuration(t *testing.T) {
	clock := newFakeClock()
	sim, ras := newTestSimulator(t, 2, 1, WithClock(clock))
	ras[0].onTick = func() { clock.advance(10 * time.Millisecond) }

	require.NoError(t, sim.Run(context.Background(), 1.0, 0.25))
	// every iteration costs exactly the budget
	assert.InDelta(t, 4, sim.Time(), 1)
	assert.Equal(t, int(sim.Time()), ras[1].tickCount())
}

func TestRunAlwaysTicksOnce(t *testing.T) {
	clock := newFakeClock()
	sim, _ := newTestSimulator(t, 1, 1, WithClock(clock))
	require.NoError(t, sim.Run(context.Background(), 0, 0))
	assert.Equal(t, int64(1), sim.Time())
	assert.Empty(t, clock.naps)
}

func TestRunHonorsCancellation(t *testing.T) {
	clock := newFakeClock()
	sim, ras := newTestSimulator(t, 1, 1, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sim.Run(ctx, 10, 0.1), context.Canceled)
	assert.Equal(t, int64(0), sim.Time())

	ctx, cancel = context.WithCancel(context.Background())
	ras[0].onTick = func() {
		if sim.Time() == 2 {
			cancel()
		}
	}
	require.ErrorIs(t, sim.Run(ctx, 10, 0.1), context.Canceled)
	assert.Equal(t, int64(3), sim.Time())
}

func TestRunWallClock(t *testing.T) {
	sim, _ := newTestSimulator(t, 3, 1)
	start := time.Now()
	require.NoError(t, sim.Run(context.Background(), 0.05, 0.01))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Greater(t, sim.Time(), int64(1))
}
