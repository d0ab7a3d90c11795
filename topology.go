package gossipsim

// topology.go builds and mutates the peer relation over a fixed agent set.
// Peer lists are kept ordered by the agents' positions in the agent slice, so
// that iteration over them (and hence the order random draws are consumed)
// does not depend on map ordering.

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

type topology struct {
	agents []Agent
	index  map[AgentID]int     // agent id -> position in agents
	peers  map[AgentID][]Agent // ordered by position
	rng    RandSource
	logger zerolog.Logger
}

// createTopology is a constructor.  Agent ids must be unique; the peer
// relation starts out empty.
func createTopology(agents []Agent, rng RandSource) *topology {
	tp := new(topology)
	if agents == nil {
		agents = make([]Agent, 0)
	}
	tp.agents = agents
	tp.index = make(map[AgentID]int)
	for idx, a := range agents {
		_, present := tp.index[a.ID()]
		if present {
			panic(fmt.Errorf("duplicated agent id %d", a.ID()))
		}
		tp.index[a.ID()] = idx
	}
	tp.rng = rng
	tp.logger = zerolog.Nop()
	tp.reset()
	return tp
}

// reset empties every peer list
func (tp *topology) reset() {
	tp.peers = make(map[AgentID][]Agent)
	for _, a := range tp.agents {
		tp.peers[a.ID()] = make([]Agent, 0)
	}
}

func (tp *topology) position(a Agent, id AgentID) int {
	return tp.index[a.ID()] - tp.index[id]
}

// addPeer puts p into the peer list of id, unless it is id itself or already there
func (tp *topology) addPeer(id AgentID, p Agent) {
	if p.ID() == id {
		return
	}
	list := tp.peers[id]
	at, found := slices.BinarySearchFunc(list, p.ID(), tp.position)
	if found {
		return
	}
	tp.peers[id] = slices.Insert(list, at, p)
}

// addEdge makes a and b peers of each other
func (tp *topology) addEdge(a, b Agent) {
	tp.addPeer(a.ID(), b)
	tp.addPeer(b.ID(), a)
}

// pick returns an agent chosen uniformly at random
func (tp *topology) pick() Agent {
	return tp.agents[tp.rng.RandInt(0, len(tp.agents)-1)]
}

// pickDistinct returns n distinct agents chosen uniformly at random, in the
// order they were drawn
func (tp *topology) pickDistinct(n int) []Agent {
	chosen := make(map[AgentID]bool)
	picks := make([]Agent, 0, n)
	for len(picks) < n {
		c := tp.pick()
		if chosen[c.ID()] {
			continue
		}
		chosen[c.ID()] = true
		picks = append(picks, c)
	}
	return picks
}

// GeneratePeers replaces the peer relation with a random graph.  Every agent
// draws targetDegree/2+1 distinct other agents and forms a mutual edge with
// each, so degrees vary from agent to agent.
func (tp *topology) GeneratePeers(targetDegree int) error {
	if targetDegree < 0 {
		return fmt.Errorf("negative target degree %d", targetDegree)
	}
	tp.reset()

	// with fewer agents than candidates wanted, everyone else is a candidate
	want := max(min(targetDegree/2+1, len(tp.agents)-1), 0)
	for _, a := range tp.agents {
		chosen := make(map[AgentID]bool)
		picks := make([]Agent, 0, want)
		for len(picks) < want {
			c := tp.pick()
			if c.ID() == a.ID() || chosen[c.ID()] {
				continue
			}
			chosen[c.ID()] = true
			picks = append(picks, c)
		}
		for _, p := range picks {
			tp.addEdge(a, p)
		}
	}
	tp.logger.Info().Int("agents", len(tp.agents)).Int("targetDegree", targetDegree).Msg("generated peers")
	return nil
}

// ConnectAll replaces the peer relation with a full mesh
func (tp *topology) ConnectAll() {
	tp.reset()
	for _, a := range tp.agents {
		for _, b := range tp.agents {
			tp.addPeer(a.ID(), b)
		}
	}
}

// Connect makes the agents with ids a and b peers of each other
func (tp *topology) Connect(a, b AgentID) error {
	aIdx, present := tp.index[a]
	if !present {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, a)
	}
	bIdx, present := tp.index[b]
	if !present {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, b)
	}
	tp.addEdge(tp.agents[aIdx], tp.agents[bIdx])
	return nil
}

// Peers returns a copy of the peer list of id
func (tp *topology) Peers(id AgentID) []Agent {
	return slices.Clone(tp.peers[id])
}

// PeerIDs returns the ids of the peers of id
func (tp *topology) PeerIDs(id AgentID) []AgentID {
	ids := make([]AgentID, 0, len(tp.peers[id]))
	for _, p := range tp.peers[id] {
		ids = append(ids, p.ID())
	}
	return ids
}

// Degree is the number of peers of id
func (tp *topology) Degree(id AgentID) int {
	return len(tp.peers[id])
}

// HasPeer reports whether p is in the peer list of id
func (tp *topology) HasPeer(id, p AgentID) bool {
	return slices.ContainsFunc(tp.peers[id], func(a Agent) bool { return a.ID() == p })
}

// Agents returns the agent set
func (tp *topology) Agents() []Agent {
	return slices.Clone(tp.agents)
}

// lookup scans the agent set (not the peer relation) for id
func (tp *topology) lookup(id AgentID) (Agent, bool) {
	for _, a := range tp.agents {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// KnockOfflineRandom isolates n distinct randomly selected agents: their peer
// lists are emptied and they are removed from everyone else's.  Direct sends
// to them still resolve, since those scan the agent set.
func (tp *topology) KnockOfflineRandom(n int) ([]AgentID, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative agent count %d", n)
	}
	if n > len(tp.agents) {
		return nil, fmt.Errorf("%w: knock offline %d of %d", ErrTooManyAgents, n, len(tp.agents))
	}

	ko := make(map[AgentID]bool)
	ids := make([]AgentID, 0, n)
	for _, c := range tp.pickDistinct(n) {
		ko[c.ID()] = true
		ids = append(ids, c.ID())
		tp.peers[c.ID()] = make([]Agent, 0)
	}
	for _, a := range tp.agents {
		tp.peers[a.ID()] = slices.DeleteFunc(tp.peers[a.ID()], func(p Agent) bool { return ko[p.ID()] })
	}
	tp.logger.Info().Ints("agents", idsToInts(ids)).Msg("knocked offline")
	return ids, nil
}

// Partition randomly selects ceil(n/2) agents as group A and then drops
// every edge that crosses between A and its complement
func (tp *topology) Partition() ([]AgentID, error) {
	if len(tp.agents) == 0 {
		return nil, ErrNoAgents
	}
	size := (len(tp.agents) + 1) / 2

	inA := make(map[AgentID]bool)
	groupA := make([]AgentID, 0, size)
	for _, c := range tp.pickDistinct(size) {
		inA[c.ID()] = true
		groupA = append(groupA, c.ID())
	}
	for _, a := range tp.agents {
		side := inA[a.ID()]
		tp.peers[a.ID()] = slices.DeleteFunc(tp.peers[a.ID()], func(p Agent) bool { return inA[p.ID()] != side })
	}
	tp.logger.Info().Int("groupA", size).Int("groupB", len(tp.agents)-size).Msg("partitioned")
	return groupA, nil
}

func idsToInts(ids []AgentID) []int {
	rtn := make([]int, len(ids))
	for idx, id := range ids {
		rtn[idx] = int(id)
	}
	return rtn
}
