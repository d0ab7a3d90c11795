package gossipsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloodAgentOriginateWaitsForTick(t *testing.T) {
	fas := CreateFloodAgents(3)
	sim := CreateSimulator(AsAgents(fas), WithRand(NewSeededSource(1)), WithSampler(ConstSampler(1)),
		WithReliability(1.0))
	for _, fa := range fas {
		fa.Bind(sim, newTestLogger(t))
	}
	sim.ConnectAll()

	payload := []byte("hello")
	fas[0].Originate(payload)
	assert.True(t, fas[0].Seen(payload))
	assert.Equal(t, 0, sim.Pending())

	require.NoError(t, sim.Tick())
	assert.Equal(t, 2, sim.Pending())
	require.NoError(t, sim.Tick())
	assert.Equal(t, 3, Coverage(fas, payload))
	assert.Equal(t, AgentID(0), fas[1].seen[string(payload)])
}

func TestFloodAgentFloodsOverPeers(t *testing.T) {
	fas := CreateFloodAgents(6)
	sim := CreateSimulator(AsAgents(fas), WithRand(NewSeededSource(2)), WithSampler(ConstSampler(1)),
		WithReliability(1.0))
	for _, fa := range fas {
		fa.Bind(sim, newTestLogger(t))
	}
	// a line: 0-1-2-3-4-5
	for idx := 1; idx < len(fas); idx++ {
		require.NoError(t, sim.Connect(AgentID(idx-1), AgentID(idx)))
	}

	payload := []byte("relay")
	fas[0].Originate(payload)
	for i := 0; i < 30; i++ {
		require.NoError(t, sim.Tick())
	}
	assert.Equal(t, 6, Coverage(fas, payload))

	// every agent relays once, so each hears the payload from each neighbor
	assert.Equal(t, 1, fas[0].Received())
	assert.Equal(t, 2, fas[3].Received())
	assert.Equal(t, 1, fas[5].Received())
	assert.Equal(t, 30, fas[2].Ticks())
}

func TestFloodAgentUnbound(t *testing.T) {
	fa := CreateFloodAgent(4)
	fa.Originate([]byte("x"))
	assert.NotPanics(t, fa.Tick)
	assert.Equal(t, AgentID(4), fa.ID())
	assert.False(t, fa.Seen([]byte("y")))
}

func TestFloodAgentStopsAtPartition(t *testing.T) {
	fas := CreateFloodAgents(10)
	sim := CreateSimulator(AsAgents(fas), WithRand(NewSeededSource(3)), WithSampler(ConstSampler(1)),
		WithReliability(1.0))
	for _, fa := range fas {
		fa.Bind(sim, newTestLogger(t))
	}
	sim.ConnectAll()
	groupA, err := sim.Partition()
	require.NoError(t, err)

	payload := []byte("split")
	fas[groupA[0]].Originate(payload)
	for i := 0; i < 10; i++ {
		require.NoError(t, sim.Tick())
	}
	assert.Equal(t, len(groupA), Coverage(fas, payload))
	for _, id := range groupA {
		assert.True(t, fas[id].Seen(payload))
	}
}
