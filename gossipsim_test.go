package gossipsim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExperimentModes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 5
	exp, err := BuildExperiment("paced", cfg, AsAgents(CreateFloodAgents(4)), newTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &Simulator{}, exp.Net)
	assert.False(t, exp.Trace.Active())

	cfg = DefaultConfig()
	cfg.Mode = ModeVirtual
	cfg.Trace = true
	cfg.ProcessingTime = 0.5
	exp, err = BuildExperiment("virtual", cfg, AsAgents(CreateFloodAgents(4)), newTestLogger(t))
	require.NoError(t, err)
	vs, ok := exp.Net.(*VirtualSimulator)
	require.True(t, ok)
	assert.NotNil(t, vs.Processor(3))
	assert.True(t, exp.Trace.Active())
	assert.Len(t, exp.Trace.NameByID, 4)
}

func TestBuildExperimentRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reliability = 2
	_, err := BuildExperiment("bad", cfg, nil, newTestLogger(t))
	require.Error(t, err)
}

func TestSeededExperimentsRepeat(t *testing.T) {
	run := func() (*TopoDesc, []int) {
		cfg := DefaultConfig()
		cfg.Seed = 77
		cfg.Mode = ModeVirtual
		cfg.Latency = LatencyDesc{Model: "exponential", Mean: 4}
		fas := CreateFloodAgents(20)
		exp, err := BuildExperiment("repeat", cfg, AsAgents(fas), newTestLogger(t))
		require.NoError(t, err)
		for _, fa := range fas {
			fa.Bind(exp.Net, newTestLogger(t))
		}
		require.NoError(t, exp.Net.GeneratePeers(cfg.TargetDegree))
		fas[0].Originate([]byte("again"))
		require.NoError(t, exp.Net.Run(context.Background(), 30, 0))

		received := make([]int, len(fas))
		for idx, fa := range fas {
			received[idx] = fa.Received()
		}
		return exp.Net.ExportTopology("repeat"), received
	}

	td1, rcv1 := run()
	td2, rcv2 := run()
	assert.Equal(t, td1, td2)
	assert.Equal(t, rcv1, rcv2)
}
