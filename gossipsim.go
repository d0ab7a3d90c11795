// Package gossipsim is a discrete-event simulator for peer-to-peer gossip
// protocols.  Agents exchange opaque payloads over a randomly generated peer
// graph whose links are lossy and delayed; faults (isolating agents,
// partitioning the graph) can be injected while a run is in progress.
//
// Two engines share one Network contract: Simulator advances an integer
// tick clock paced against the wall clock, VirtualSimulator advances a
// virtual clock through an event manager.  WSNetwork carries the same send
// primitives over real websocket connections.
package gossipsim

import (
	"fmt"

	"github.com/rs/zerolog"
)

// SimNetwork is the Network of a simulated engine, whose peer relation can
// be inspected and saved
type SimNetwork interface {
	Network

	Agents() []Agent
	ConnectAll()
	Connect(a, b AgentID) error
	Peers(id AgentID) []Agent
	Degree(id AgentID) int
	Components() [][]AgentID
	Reachable(a, b AgentID) bool
	HopCount(a, b AgentID) (int, bool)
	ExportTopology(name string) *TopoDesc
	ApplyTopology(td *TopoDesc) error
}

var (
	_ SimNetwork = (*Simulator)(nil)
	_ SimNetwork = (*VirtualSimulator)(nil)
)

// Experiment bundles what BuildExperiment assembles from a Config
type Experiment struct {
	Name  string
	Cfg   *Config
	Net   SimNetwork
	Rng   RandSource
	Trace *TraceManager
}

// BuildExperiment creates the engine cfg.Mode selects over agents, with
// the latency model, probabilities and random source cfg describes.  The
// peer relation is left empty.
func BuildExperiment(name string, cfg *Config, agents []Agent, logger zerolog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := sourceFor(cfg.Seed, name)
	sampler, err := BuildSampler(cfg.Latency, rng)
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", name, err)
	}

	tm := CreateTraceManager(name, cfg.Trace)
	for _, a := range agents {
		if err := tm.AddName(int(a.ID()), fmt.Sprintf("agent-%d", a.ID()), "agent"); err != nil {
			return nil, err
		}
	}

	opts := []Option{
		WithRand(rng),
		WithSampler(sampler),
		WithReliability(cfg.Reliability),
		WithBroadcastSuccessRate(cfg.BroadcastSuccessRate),
		WithLogger(logger),
		WithTrace(tm),
	}

	exp := &Experiment{Name: name, Cfg: cfg, Rng: rng, Trace: tm}
	switch cfg.Mode {
	case ModeVirtual:
		opts = append(opts, WithTickInterval(max(cfg.Sleep, 0.0)), WithAsyncClocks(cfg.AsyncClocks),
			WithProcessing(cfg.ProcessingTime, cfg.Cores))
		exp.Net = CreateVirtualSimulator(agents, opts...)
	default:
		exp.Net = CreateSimulator(agents, opts...)
	}
	logger.Info().Str("experiment", name).Str("mode", cfg.Mode).Int("agents", len(agents)).
		Str("latency", cfg.Latency.Model).Float64("reliability", cfg.Reliability).Msg("experiment built")
	return exp, nil
}
