package gossipsim

// agent.go defines what the network needs from a participant, and a
// flooding gossip agent that exercises the send primitives.

import (
	"github.com/rs/zerolog"
)

// AgentID identifies an agent.  It is used as a map key and travels with
// every delivery as the sender identity.
type AgentID int

// Agent is the capability set the network calls into.  Tick is called once
// per simulated tick; OnReceive is called when a message is delivered.
type Agent interface {
	ID() AgentID
	Tick()
	OnReceive(payload []byte, sender AgentID)
}

// FloodAgent gossips by flooding: a payload seen for the first time is
// remembered and rebroadcast to every peer, repeats are ignored.
type FloodAgent struct {
	id  AgentID
	net Network

	seen     map[string]AgentID // payload -> sender it first arrived from
	received int                // deliveries, repeats included
	ticks    int
	outbox   [][]byte // originated payloads waiting for the next tick

	logger zerolog.Logger
}

// CreateFloodAgent is a constructor.  The agent must be bound to a network
// before it ticks.
func CreateFloodAgent(id AgentID) *FloodAgent {
	fa := new(FloodAgent)
	fa.id = id
	fa.seen = make(map[string]AgentID)
	fa.outbox = make([][]byte, 0)
	fa.logger = zerolog.Nop()
	return fa
}

// CreateFloodAgents builds n agents with ids 0..n-1
func CreateFloodAgents(n int) []*FloodAgent {
	agents := make([]*FloodAgent, n)
	for idx := range agents {
		agents[idx] = CreateFloodAgent(AgentID(idx))
	}
	return agents
}

// AsAgents converts a slice of flood agents to the interface slice the
// networks are built from
func AsAgents(fas []*FloodAgent) []Agent {
	agents := make([]Agent, len(fas))
	for idx, fa := range fas {
		agents[idx] = fa
	}
	return agents
}

// Bind attaches the agent to the network it sends through
func (fa *FloodAgent) Bind(net Network, logger zerolog.Logger) {
	fa.net = net
	fa.logger = logger.With().Int("agent", int(fa.id)).Logger()
}

func (fa *FloodAgent) ID() AgentID {
	return fa.id
}

// Originate queues a new payload; it is broadcast on the agent's next tick
func (fa *FloodAgent) Originate(payload []byte) {
	fa.seen[string(payload)] = fa.id
	fa.outbox = append(fa.outbox, payload)
}

func (fa *FloodAgent) Tick() {
	fa.ticks += 1
	if fa.net == nil || len(fa.outbox) == 0 {
		return
	}
	pending := fa.outbox
	fa.outbox = make([][]byte, 0)
	for _, payload := range pending {
		if err := fa.net.Broadcast(fa, payload); err != nil {
			fa.logger.Error().Err(err).Msg("broadcast failed")
		}
	}
}

func (fa *FloodAgent) OnReceive(payload []byte, sender AgentID) {
	fa.received += 1
	key := string(payload)
	if _, present := fa.seen[key]; present {
		return
	}
	fa.seen[key] = sender
	fa.logger.Debug().Int("from", int(sender)).Int("size", len(payload)).Msg("new payload")

	// relay on the next tick rather than from inside the delivery
	fa.outbox = append(fa.outbox, payload)
}

// Seen reports whether the agent has originated or received payload
func (fa *FloodAgent) Seen(payload []byte) bool {
	_, present := fa.seen[string(payload)]
	return present
}

// Received is the number of deliveries, repeats included
func (fa *FloodAgent) Received() int {
	return fa.received
}

// Ticks is the number of times the agent has been ticked
func (fa *FloodAgent) Ticks() int {
	return fa.ticks
}

// Coverage counts the agents that have seen payload
func Coverage(agents []*FloodAgent, payload []byte) int {
	cnt := 0
	for _, fa := range agents {
		if fa.Seen(payload) {
			cnt += 1
		}
	}
	return cnt
}
