package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/iti/gossipsim"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Flood one message through a simulated network",
	Long: `Build flooding agents over a random peer graph, originate one message
from the first agent, run for the configured duration and report how many
agents saw it.`,
	RunE: runExperiment,
}

func init() {
	runCmd.Flags().Int("agents", 0, "number of agents (overrides the configuration)")
	runCmd.Flags().String("mode", "", "engine: paced or virtual (overrides the configuration)")
	runCmd.Flags().Float64("duration", 0, "seconds to run (overrides the configuration)")
	runCmd.Flags().String("topology", "", "topology description file to use instead of generating peers")
	rootCmd.AddCommand(runCmd)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("agents") {
		cfg.Agents, _ = flags.GetInt("agents")
	}
	if flags.Changed("mode") {
		cfg.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("duration") {
		cfg.Duration, _ = flags.GetFloat64("duration")
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	fas := gossipsim.CreateFloodAgents(cfg.Agents)
	exp, err := gossipsim.BuildExperiment("gossipsim-run", cfg, gossipsim.AsAgents(fas), logger)
	if err != nil {
		return err
	}
	for _, fa := range fas {
		fa.Bind(exp.Net, logger)
	}

	topoFile, _ := flags.GetString("topology")
	if topoFile != "" {
		td, err := gossipsim.ReadTopoDesc(topoFile, isYAMLFile(topoFile), nil)
		if err != nil {
			return err
		}
		if err := exp.Net.ApplyTopology(td); err != nil {
			return err
		}
	} else if err := exp.Net.GeneratePeers(cfg.TargetDegree); err != nil {
		return err
	}

	payload := []byte("gossip")
	if len(fas) > 0 {
		fas[0].Originate(payload)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := exp.Net.Run(ctx, cfg.Duration, cfg.Sleep); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "coverage: %d of %d agents\n", gossipsim.Coverage(fas, payload), len(fas))
	fmt.Fprintf(out, "components: %d\n", len(exp.Net.Components()))
	switch net := exp.Net.(type) {
	case *gossipsim.Simulator:
		stats := net.Stats()
		fmt.Fprintf(out, "ticks: %d, pending: %d\n", net.Time(), net.Pending())
		fmt.Fprintf(out, "running: %.3fs, sleeping: %.3fs, sleep debt: %.3fs\n",
			stats.TimeRunning, stats.TimeSleeping, stats.SleepDebt)
	case *gossipsim.VirtualSimulator:
		fmt.Fprintf(out, "virtual time: %.3fs, pending: %d\n", net.Horizon(), net.Pending())
	}

	if cfg.Trace {
		if err := exp.Trace.WriteToFile(cfg.TraceFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "trace written to %s\n", cfg.TraceFile)
	}
	return nil
}
