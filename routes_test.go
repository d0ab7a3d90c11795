package gossipsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line builds 0-1-2-3 and leaves 4 unconnected
func line(t *testing.T) *Simulator {
	sim, _ := newTestSimulator(t, 5, 1)
	require.NoError(t, sim.Connect(0, 1))
	require.NoError(t, sim.Connect(1, 2))
	require.NoError(t, sim.Connect(2, 3))
	return sim
}

func TestComponents(t *testing.T) {
	sim := line(t)
	assert.Equal(t, [][]AgentID{{0, 1, 2, 3}, {4}}, sim.Components())

	empty, _ := newTestSimulator(t, 3, 1)
	assert.Equal(t, [][]AgentID{{0}, {1}, {2}}, empty.Components())
}

func TestHopCount(t *testing.T) {
	sim := line(t)

	hops, ok := sim.HopCount(0, 3)
	require.True(t, ok)
	assert.Equal(t, 3, hops)

	hops, ok = sim.HopCount(2, 2)
	require.True(t, ok)
	assert.Equal(t, 0, hops)

	_, ok = sim.HopCount(0, 4)
	assert.False(t, ok)
	_, ok = sim.HopCount(0, 42)
	assert.False(t, ok)
}

func TestReachableAndRoute(t *testing.T) {
	sim := line(t)
	assert.True(t, sim.Reachable(3, 0))
	assert.False(t, sim.Reachable(4, 0))
	assert.False(t, sim.Reachable(42, 0))

	assert.Equal(t, []AgentID{0, 1, 2, 3}, sim.Route(0, 3))
	assert.Empty(t, sim.Route(0, 4))
	assert.Nil(t, sim.Route(42, 0))
}

func TestKnockOfflineSplitsComponents(t *testing.T) {
	sim, _ := newTestSimulator(t, 6, 5)
	sim.ConnectAll()
	ko, err := sim.KnockOfflineRandom(2)
	require.NoError(t, err)

	// the survivors form one component, each isolated agent its own
	assert.Len(t, sim.Components(), 3)
	for _, id := range ko {
		for _, a := range sim.Agents() {
			if a.ID() != id {
				assert.False(t, sim.Reachable(a.ID(), id))
			}
		}
	}
}
