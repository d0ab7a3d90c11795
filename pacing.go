package gossipsim

// pacing.go drives the tick engine at an approximate real-time rate.  A tick
// that overruns its interval puts the overrun into a sleep debt; later ticks
// that finish early repay up to half of their idle time against it, instead
// of the loop stalling or rushing to catch up.

import (
	"context"
	"time"
)

// Clock is the wall clock the pacing loop measures and sleeps on
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type wallClock struct{}

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

// PacingStats holds the pacing loop's cumulative wall-clock accounting, in seconds
type PacingStats struct {
	TimeSleeping float64
	TimeRunning  float64
	SleepDebt    float64
}

// Stats returns the pacing accounting so far
func (sim *Simulator) Stats() PacingStats {
	return sim.stats
}

// pace does the accounting for one tick that took elapsed seconds against a
// budget of sleep seconds, and returns how long to sleep
func (ps *PacingStats) pace(elapsed, sleep float64) float64 {
	var nap float64
	if sleep > elapsed {
		idle := sleep - elapsed
		repay := min(ps.SleepDebt, idle*0.5)
		nap = idle - repay
		ps.TimeSleeping += nap
		ps.SleepDebt -= repay
	} else {
		ps.SleepDebt += elapsed - sleep
	}
	ps.TimeRunning += elapsed
	return nap
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Run ticks the simulator with a target interval of sleep seconds until
// seconds of wall-clock time have passed, or ctx is done.  At least one tick
// always runs.
func (sim *Simulator) Run(ctx context.Context, seconds, sleep float64) error {
	var total float64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := sim.clock.Now()
		if err := sim.Tick(); err != nil {
			return err
		}
		elapsed := sim.clock.Now().Sub(before).Seconds()

		nap := sim.stats.pace(elapsed, sleep)
		if nap > 0.0 {
			sim.clock.Sleep(fromSeconds(nap))
		}
		mSleepDebt.Set(sim.stats.SleepDebt)

		evt := sim.logger.Debug().Int64("tick", sim.time-1).Float64("elapsed", elapsed).
			Float64("sleeping", sim.stats.TimeSleeping).Float64("running", sim.stats.TimeRunning)
		if sim.stats.SleepDebt > 0.0 {
			evt = evt.Float64("sleepDebt", sim.stats.SleepDebt)
		}
		evt.Msg("tick finished")

		total += sim.clock.Now().Sub(before).Seconds()
		if total >= seconds {
			return nil
		}
	}
}
