package gossipsim

import (
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completion struct {
	msg string
	at  float64
}

func recordCompletion(log *[]completion) evtm.EventHandlerFunction {
	return func(evtMgr *evtm.EventManager, context any, data any) any {
		*log = append(*log, completion{msg: data.(string), at: evtMgr.CurrentSeconds()})
		return nil
	}
}

func TestTaskSchedulerCores(t *testing.T) {
	evtMgr := evtm.New()
	ops := CreateTaskScheduler(2)
	var log []completion
	done := recordCompletion(&log)

	assert.True(t, ops.Schedule(evtMgr, "op", 1.0, 1.0, nil, "a", done))
	assert.True(t, ops.Schedule(evtMgr, "op", 1.0, 1.0, nil, "b", done))
	assert.False(t, ops.Schedule(evtMgr, "op", 1.0, 1.0, nil, "c", done))
	assert.Equal(t, 2, ops.InService())
	assert.Equal(t, 1, ops.Waiting())

	evtMgr.Run(10.0)
	require.Len(t, log, 3)
	assert.InDelta(t, 1.0, log[0].at, 1e-9)
	assert.InDelta(t, 1.0, log[1].at, 1e-9)
	assert.Equal(t, "c", log[2].msg)
	assert.InDelta(t, 2.0, log[2].at, 1e-9)
	assert.Equal(t, 3, ops.Completed())
	assert.Equal(t, 0, ops.InService())
	assert.Equal(t, 0, ops.Waiting())
}

func TestTaskSchedulerTimeslice(t *testing.T) {
	evtMgr := evtm.New()
	ops := CreateTaskScheduler(1)
	var log []completion
	done := recordCompletion(&log)

	assert.False(t, ops.Schedule(evtMgr, "long", 2.5, 1.0, nil, "long", done))
	evtMgr.Run(10.0)
	require.Len(t, log, 1)
	assert.InDelta(t, 2.5, log[0].at, 1e-9)
}

func TestTaskSchedulerRoundRobin(t *testing.T) {
	evtMgr := evtm.New()
	ops := CreateTaskScheduler(1)
	var log []completion
	done := recordCompletion(&log)

	// the long task yields after each slice, so the short one finishes first
	ops.Schedule(evtMgr, "op", 3.0, 1.0, nil, "long", done)
	ops.Schedule(evtMgr, "op", 1.0, 1.0, nil, "short", done)
	evtMgr.Run(10.0)

	require.Len(t, log, 2)
	assert.Equal(t, "short", log[0].msg)
	assert.InDelta(t, 2.0, log[0].at, 1e-9)
	assert.Equal(t, "long", log[1].msg)
	assert.InDelta(t, 4.0, log[1].at, 1e-9)
}

func TestTaskSchedulerDefaults(t *testing.T) {
	ops := CreateTaskScheduler(0)
	assert.Equal(t, 1, ops.cores)

	evtMgr := evtm.New()
	var log []completion
	// a non-positive timeslice serves the whole requirement at once
	assert.True(t, ops.Schedule(evtMgr, "op", 4.0, 0.0, nil, "all", recordCompletion(&log)))
	evtMgr.Run(10.0)
	require.Len(t, log, 1)
	assert.InDelta(t, 4.0, log[0].at, 1e-9)
}
