package gossipsim

// virtual.go holds the cooperative engine: instead of pacing ticks against
// the wall clock it advances a virtual clock through an evtm event manager.
// Every agent's tick is a self-rescheduling event at a fixed virtual
// interval, and every message in flight is an event scheduled after its
// sampled latency that performs the delivery when it fires.  One latency
// unit is one virtual second.

import (
	"context"
	"math"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// WithTickInterval sets the virtual seconds between two ticks of an agent
func WithTickInterval(seconds float64) Option {
	return func(o *options) { o.tickInterval = seconds }
}

// WithAsyncClocks offsets each agent's tick loop by a random phase in
// [0, 0.999] virtual seconds, so agents do not tick in lockstep
func WithAsyncClocks(async bool) Option {
	return func(o *options) { o.asyncClocks = async }
}

// WithProcessing makes each recipient spend seconds of service, on one of
// cores cores, before a delivered message reaches OnReceive
func WithProcessing(seconds float64, cores int) Option {
	return func(o *options) {
		o.procTime = seconds
		o.cores = cores
	}
}

// VirtualSimulator is the virtual-time counterpart of Simulator; it honors
// the same Network contract.
type VirtualSimulator struct {
	*topology

	evtMgr       *evtm.EventManager
	reliability  float64
	successRate  float64
	sample       Sampler
	rng          RandSource
	tickInterval float64
	asyncClocks  bool

	procTime   float64
	processors map[AgentID]*TaskScheduler

	started  bool
	horizon  float64 // virtual time the engine has been run up to
	inFlight int

	trace  *TraceManager
	logger zerolog.Logger
}

var _ Network = (*VirtualSimulator)(nil)

// CreateVirtualSimulator is a constructor.  The agent set is fixed for the
// simulator's lifetime; the peer relation starts out empty.
func CreateVirtualSimulator(agents []Agent, opts ...Option) *VirtualSimulator {
	o := resolveOptions("gossipsim-virtual", opts)

	vs := new(VirtualSimulator)
	vs.topology = createTopology(agents, o.rng)
	vs.topology.logger = o.logger
	vs.evtMgr = evtm.New()
	vs.reliability = o.reliability
	vs.successRate = o.successRate
	vs.sample = o.sampler
	vs.rng = o.rng
	vs.tickInterval = o.tickInterval
	if !(vs.tickInterval > 0.0) {
		vs.tickInterval = 1.0
	}
	vs.asyncClocks = o.asyncClocks
	vs.procTime = o.procTime
	vs.processors = make(map[AgentID]*TaskScheduler)
	if vs.procTime > 0.0 {
		for _, a := range vs.agents {
			vs.processors[a.ID()] = CreateTaskScheduler(o.cores)
		}
	}
	vs.trace = o.trace
	vs.logger = o.logger
	return vs
}

// Now is the current virtual time, in seconds
func (vs *VirtualSimulator) Now() float64 {
	return vs.evtMgr.CurrentSeconds()
}

// Horizon is the virtual time the engine has been run up to
func (vs *VirtualSimulator) Horizon() float64 {
	return vs.horizon
}

// Time is the number of whole tick intervals the engine has been run through
func (vs *VirtualSimulator) Time() int64 {
	return int64(math.Floor(vs.horizon/vs.tickInterval + 1e-9))
}

// Pending is the number of deliveries in flight
func (vs *VirtualSimulator) Pending() int {
	return vs.inFlight
}

// Processor returns the receive-processing scheduler of an agent, nil when
// processing is not modeled
func (vs *VirtualSimulator) Processor(id AgentID) *TaskScheduler {
	return vs.processors[id]
}

// start schedules the first tick of every agent, once
func (vs *VirtualSimulator) start() {
	if vs.started {
		return
	}
	vs.started = true
	for _, a := range vs.agents {
		offset := 0.0
		if vs.asyncClocks {
			offset = float64(vs.rng.RandInt(0, 999)) / 1000.0
		}
		vs.evtMgr.Schedule(vs, a, agentTick, vrtime.SecondsToTime(offset+vs.tickInterval))
	}
}

// agentTick ticks one agent and schedules its next tick
func agentTick(evtMgr *evtm.EventManager, context any, data any) any {
	vs := context.(*VirtualSimulator)
	a := data.(Agent)
	a.Tick()
	evtMgr.Schedule(context, data, agentTick, vrtime.SecondsToTime(vs.tickInterval))
	return nil
}

// runUntil advances the virtual clock to end, one tick interval at a time so
// cancellation is noticed between intervals
func (vs *VirtualSimulator) runUntil(ctx context.Context, end float64) error {
	vs.start()
	for vs.horizon < end {
		if err := ctx.Err(); err != nil {
			return err
		}
		vs.horizon = math.Min(vs.horizon+vs.tickInterval, end)
		vs.drainTo(vs.horizon)
	}
	return nil
}

// drainTo runs every event scheduled at or before limit.  The event manager
// stops once its clock reaches limit, leaving other events at exactly limit
// on the list.
func (vs *VirtualSimulator) drainTo(limit float64) {
	vs.evtMgr.Run(limit)
	limitTicks := vrtime.SecondsToTicks(limit)
	for vs.evtMgr.EventList.Len() > 0 && vs.evtMgr.EventList.MinTime().Ticks() <= limitTicks {
		vs.evtMgr.Run(limit)
	}
}

// Tick advances the virtual clock by one tick interval
func (vs *VirtualSimulator) Tick() error {
	return vs.runUntil(context.Background(), vs.horizon+vs.tickInterval)
}

// Run advances the virtual clock by seconds.  A positive sleep sets the tick
// interval, as long as the tick loops have not started yet.
func (vs *VirtualSimulator) Run(ctx context.Context, seconds, sleep float64) error {
	if !vs.started && sleep > 0.0 {
		vs.tickInterval = sleep
	}
	vs.logger.Info().Float64("from", vs.horizon).Float64("seconds", seconds).
		Float64("tickInterval", vs.tickInterval).Msg("running virtual time")
	return vs.runUntil(ctx, vs.horizon+seconds)
}

// receiveLater schedules the delivery of payload to recipient after a
// sampled latency
func (vs *VirtualSimulator) receiveLater(sender AgentID, recipient Agent, payload []byte) {
	delay := vs.sample()
	now := vs.evtMgr.CurrentSeconds()
	d := &delivery{sender: sender, recipient: recipient, payload: payload, sentAt: int64(now)}
	vs.inFlight += 1
	addMsgTrace(vs.trace, int64(now)+int64(delay), vs.evtMgr.CurrentTime(), TraceEnqueue, *d)
	mEnqueued.Inc()
	vs.evtMgr.Schedule(vs, d, deliverLater, vrtime.SecondsToTime(float64(delay)))
}

// deliverLater fires when a message's latency has elapsed.  Reliability is
// drawn now, at delivery time.
func deliverLater(evtMgr *evtm.EventManager, context any, data any) any {
	vs := context.(*VirtualSimulator)
	d := data.(*delivery)
	vs.inFlight -= 1

	now := evtMgr.CurrentTime()
	if !(vs.rng.RandU01() < vs.reliability) {
		addMsgTrace(vs.trace, int64(now.Seconds()), now, TraceDrop, *d)
		mDropped.Inc()
		return nil
	}

	ops, present := vs.processors[d.recipient.ID()]
	if present {
		ops.Schedule(evtMgr, "receive", vs.procTime, vs.procTime, vs, d, receiveComplete)
		return nil
	}
	return receiveComplete(evtMgr, vs, d)
}

// receiveComplete hands a delivered message to its recipient
func receiveComplete(evtMgr *evtm.EventManager, context any, data any) any {
	vs := context.(*VirtualSimulator)
	d := data.(*delivery)
	now := evtMgr.CurrentTime()
	addMsgTrace(vs.trace, int64(now.Seconds()), now, TraceDeliver, *d)
	mDelivered.Inc()
	d.recipient.OnReceive(d.payload, d.sender)
	return nil
}

// sendFails draws whether a send is suppressed outright
func (vs *VirtualSimulator) sendFails(sender Agent, payload []byte, pr float64) bool {
	if vs.rng.RandU01() < pr {
		return false
	}
	now := vs.evtMgr.CurrentTime()
	addMsgTrace(vs.trace, int64(now.Seconds()), now, TraceSuppress,
		delivery{sender: sender.ID(), payload: payload, sentAt: int64(now.Seconds())})
	mSuppressed.Inc()
	return true
}

// Broadcast schedules a delivery of payload to every peer of sender
func (vs *VirtualSimulator) Broadcast(sender Agent, payload []byte) error {
	checkPayload(payload)
	if vs.sendFails(sender, payload, vs.successRate) {
		return nil
	}
	payload = slices.Clone(payload)
	for _, p := range vs.peers[sender.ID()] {
		vs.receiveLater(sender.ID(), p, payload)
	}
	return nil
}

// SendToOne schedules a delivery of payload to one random peer of sender
func (vs *VirtualSimulator) SendToOne(sender Agent, payload []byte) error {
	checkPayload(payload)
	if vs.sendFails(sender, payload, vs.successRate) {
		return nil
	}
	peers := vs.peers[sender.ID()]
	if len(peers) == 0 {
		return nil
	}
	p := peers[vs.rng.RandInt(0, len(peers)-1)]
	vs.receiveLater(sender.ID(), p, slices.Clone(payload))
	return nil
}

// DirectSend schedules a delivery of payload to the agent whose id is to,
// found by scanning the agent set
func (vs *VirtualSimulator) DirectSend(sender Agent, to AgentID, payload []byte) error {
	checkPayload(payload)
	if vs.sendFails(sender, payload, vs.successRate*vs.reliability) {
		return nil
	}
	recipient, found := vs.lookup(to)
	if !found {
		return nil
	}
	vs.receiveLater(sender.ID(), recipient, slices.Clone(payload))
	return nil
}
