package gossipsim

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestLogger forwards log lines to the test log
type TestLogger struct {
	Test testing.TB
}

var _ io.Writer = (*TestLogger)(nil)

func (l *TestLogger) Write(b []byte) (int, error) {
	l.Test.Log(strings.TrimSuffix(string(b), "\n"))
	return len(b), nil
}

func newTestLogger(t testing.TB) zerolog.Logger {
	return zerolog.New(newConsoleWriter(&TestLogger{Test: t})).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

type receipt struct {
	payload []byte
	sender  AgentID
	at      float64
}

// recordingAgent remembers everything it is handed.  now, when set, stamps
// each receipt; onTick, when set, runs at every tick.
type recordingAgent struct {
	id     AgentID
	ticks  int
	got    []receipt
	now    func() float64
	onTick func()
	events *[]string
	mu     sync.Mutex
}

func newRecordingAgents(n int) []*recordingAgent {
	agents := make([]*recordingAgent, n)
	for idx := range agents {
		agents[idx] = &recordingAgent{id: AgentID(idx)}
	}
	return agents
}

func asAgents(ras []*recordingAgent) []Agent {
	agents := make([]Agent, len(ras))
	for idx, ra := range ras {
		agents[idx] = ra
	}
	return agents
}

func (ra *recordingAgent) ID() AgentID { return ra.id }

func (ra *recordingAgent) Tick() {
	ra.mu.Lock()
	ra.ticks += 1
	ra.mu.Unlock()
	if ra.events != nil {
		*ra.events = append(*ra.events, "tick")
	}
	if ra.onTick != nil {
		ra.onTick()
	}
}

func (ra *recordingAgent) OnReceive(payload []byte, sender AgentID) {
	r := receipt{payload: payload, sender: sender}
	if ra.now != nil {
		r.at = ra.now()
	}
	ra.mu.Lock()
	ra.got = append(ra.got, r)
	ra.mu.Unlock()
	if ra.events != nil {
		*ra.events = append(*ra.events, "receive")
	}
}

func (ra *recordingAgent) received() []receipt {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return append([]receipt(nil), ra.got...)
}

func (ra *recordingAgent) tickCount() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return ra.ticks
}

// fixedSource returns the same draws forever.  It must not drive topology
// generation, which needs distinct picks.
type fixedSource struct {
	u    float64
	pick int
}

func (s *fixedSource) RandU01() float64 { return s.u }

func (s *fixedSource) RandInt(lo, hi int) int { return min(lo+s.pick, hi) }

// fakeClock advances only when slept on or told to
type fakeClock struct {
	now    time.Time
	naps   []time.Duration
	elapse func() time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.naps = append(c.naps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}
