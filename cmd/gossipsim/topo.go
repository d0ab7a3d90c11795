package main

import (
	"fmt"
	"path"

	"github.com/iti/gossipsim"
	"github.com/spf13/cobra"
)

var topoCmd = &cobra.Command{
	Use:   "topo",
	Short: "Generate a random peer graph and save it",
	RunE:  generateTopology,
}

func init() {
	topoCmd.Flags().Int("agents", 10, "number of agents")
	topoCmd.Flags().Int("degree", 5, "target degree")
	topoCmd.Flags().Uint64("seed", 0, "random seed (0 uses the default stream)")
	topoCmd.Flags().String("out", "topo.yaml", "output file, yaml or json by extension")
	rootCmd.AddCommand(topoCmd)
}

func generateTopology(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	cfg.Agents, _ = flags.GetInt("agents")
	cfg.TargetDegree, _ = flags.GetInt("degree")
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}
	out, _ := flags.GetString("out")

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	agents := gossipsim.AsAgents(gossipsim.CreateFloodAgents(cfg.Agents))
	exp, err := gossipsim.BuildExperiment("gossipsim-topo", cfg, agents, logger)
	if err != nil {
		return err
	}
	if err := exp.Net.GeneratePeers(cfg.TargetDegree); err != nil {
		return err
	}

	td := exp.Net.ExportTopology(path.Base(out))
	if err := td.WriteToFile(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d agents, %d edges, %d components written to %s\n",
		len(td.Agents), td.NumEdges(), len(exp.Net.Components()), out)
	return nil
}

func isYAMLFile(filename string) bool {
	ext := path.Ext(filename)
	return ext == ".yaml" || ext == ".YAML" || ext == ".yml"
}
