package gossipsim

// simulator.go holds the tick engine: the event queue of in-flight
// deliveries, the unit step that drains it and ticks every agent, and the
// send primitives agents call from inside their callbacks.  Everything runs
// on the caller's goroutine; the send primitives are only ever called from
// the agent callbacks Tick invokes.

import (
	"github.com/iti/evt/vrtime"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// Option adjusts the construction parameters of a simulator
type Option func(*options)

type options struct {
	latency     int
	sampler     Sampler
	reliability float64
	successRate float64
	rng         RandSource
	logger      zerolog.Logger
	trace       *TraceManager
	clock       Clock

	// virtual engine only
	tickInterval float64
	asyncClocks  bool
	procTime     float64
	cores        int
}

func defaultOptions() *options {
	return &options{
		latency:      50,
		reliability:  0.9,
		successRate:  1.0,
		logger:       zerolog.Nop(),
		clock:        wallClock{},
		tickInterval: 1.0,
		asyncClocks:  true,
		cores:        1,
	}
}

// resolve applies opts and fills in the parameters that depend on others
func resolveOptions(name string, opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = NewStreamSource(name)
	}
	if o.sampler == nil {
		o.sampler = DefaultSampler(o.latency, o.rng)
	}
	return o
}

// WithLatency sets the mean of the default latency model, in ticks
func WithLatency(mean int) Option {
	return func(o *options) { o.latency = mean }
}

// WithSampler replaces the latency model
func WithSampler(s Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithReliability sets the probability an in-flight message is delivered
func WithReliability(pr float64) Option {
	return func(o *options) { o.reliability = pr }
}

// WithBroadcastSuccessRate sets the probability a send enqueues anything
func WithBroadcastSuccessRate(pr float64) Option {
	return func(o *options) { o.successRate = pr }
}

// WithRand sets the random source every draw comes from
func WithRand(rng RandSource) Option {
	return func(o *options) { o.rng = rng }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTrace records every enqueue, delivery and drop in tm
func WithTrace(tm *TraceManager) Option {
	return func(o *options) { o.trace = tm }
}

// WithClock replaces the wall clock the pacing loop reads and sleeps on
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// Simulator moves opaque payloads between agents over a simulated, lossy,
// delayed peer graph, one tick at a time.
type Simulator struct {
	*topology

	time        int64
	queue       *eventQueue
	reliability float64
	successRate float64
	sample      Sampler
	rng         RandSource

	trace  *TraceManager
	logger zerolog.Logger
	clock  Clock
	stats  PacingStats
}

var _ Network = (*Simulator)(nil)

// CreateSimulator is a constructor.  The agent set is fixed for the
// simulator's lifetime; the peer relation starts out empty.
func CreateSimulator(agents []Agent, opts ...Option) *Simulator {
	o := resolveOptions("gossipsim", opts)

	sim := new(Simulator)
	sim.topology = createTopology(agents, o.rng)
	sim.topology.logger = o.logger
	sim.queue = createEventQueue()
	sim.reliability = o.reliability
	sim.successRate = o.successRate
	sim.sample = o.sampler
	sim.rng = o.rng
	sim.trace = o.trace
	sim.logger = o.logger
	sim.clock = o.clock
	return sim
}

// Time is the current simulated tick
func (sim *Simulator) Time() int64 {
	return sim.time
}

// Pending is the number of deliveries in flight
func (sim *Simulator) Pending() int {
	return sim.queue.len()
}

// PendingAt is the number of deliveries due at tick
func (sim *Simulator) PendingAt(tick int64) int {
	return sim.queue.lenAt(tick)
}

// PendingTicks lists the ticks with deliveries due, in increasing order
func (sim *Simulator) PendingTicks() []int64 {
	return sim.queue.ticks()
}

// Tick advances simulated time by one: deliveries due now are delivered or
// dropped in the order they were enqueued, every agent is ticked in order,
// then the clock moves forward.
func (sim *Simulator) Tick() error {
	for _, d := range sim.queue.drain(sim.time) {
		if sim.rng.RandU01() < sim.reliability {
			addMsgTrace(sim.trace, sim.time, vrtime.SecondsToTime(float64(sim.time)), TraceDeliver, d)
			mDelivered.Inc()
			d.recipient.OnReceive(d.payload, d.sender)
		} else {
			addMsgTrace(sim.trace, sim.time, vrtime.SecondsToTime(float64(sim.time)), TraceDrop, d)
			mDropped.Inc()
		}
	}

	for _, a := range sim.agents {
		a.Tick()
	}

	// zero-delay sends made during this tick landed behind the drain; they
	// are due on the next tick
	for _, d := range sim.queue.drain(sim.time) {
		sim.queue.push(sim.time+1, d)
	}

	sim.time += 1
	mTicks.Inc()
	mQueueDepth.Set(float64(sim.queue.len()))
	return nil
}

// enqueue puts one delivery in flight, due after a sampled delay
func (sim *Simulator) enqueue(sender AgentID, recipient Agent, payload []byte) {
	d := delivery{sender: sender, recipient: recipient, payload: payload, sentAt: sim.time}
	deliverAt := sim.time + int64(sim.sample())
	sim.queue.push(deliverAt, d)
	addMsgTrace(sim.trace, deliverAt, vrtime.SecondsToTime(float64(sim.time)), TraceEnqueue, d)
	mEnqueued.Inc()
}

// sendFails draws whether a send is suppressed outright
func (sim *Simulator) sendFails(sender Agent, payload []byte, pr float64) bool {
	if sim.rng.RandU01() < pr {
		return false
	}
	addMsgTrace(sim.trace, sim.time, vrtime.SecondsToTime(float64(sim.time)), TraceSuppress,
		delivery{sender: sender.ID(), payload: payload, sentAt: sim.time})
	mSuppressed.Inc()
	return true
}

// Broadcast puts payload in flight to every peer of sender, each with its
// own sampled delay
func (sim *Simulator) Broadcast(sender Agent, payload []byte) error {
	checkPayload(payload)
	if sim.sendFails(sender, payload, sim.successRate) {
		return nil
	}
	payload = slices.Clone(payload)
	for _, p := range sim.peers[sender.ID()] {
		sim.enqueue(sender.ID(), p, payload)
	}
	return nil
}

// SendToOne puts payload in flight to one peer of sender, chosen uniformly at
// random.  A sender with no peers sends nothing.
func (sim *Simulator) SendToOne(sender Agent, payload []byte) error {
	checkPayload(payload)
	if sim.sendFails(sender, payload, sim.successRate) {
		return nil
	}
	peers := sim.peers[sender.ID()]
	if len(peers) == 0 {
		return nil
	}
	p := peers[sim.rng.RandInt(0, len(peers)-1)]
	sim.enqueue(sender.ID(), p, slices.Clone(payload))
	return nil
}

// DirectSend puts payload in flight to the agent whose id is to, found by
// scanning the agent set rather than the peer relation.  One draw against the
// product of the success rate and the reliability gates the send; an unknown
// id sends nothing.
func (sim *Simulator) DirectSend(sender Agent, to AgentID, payload []byte) error {
	checkPayload(payload)
	if sim.sendFails(sender, payload, sim.successRate*sim.reliability) {
		return nil
	}
	recipient, found := sim.lookup(to)
	if !found {
		return nil
	}
	sim.enqueue(sender.ID(), recipient, slices.Clone(payload))
	return nil
}
