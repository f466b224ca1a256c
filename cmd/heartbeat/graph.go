package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/heartbeat/internal/thought"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

var graphJSON bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the thought-graph topology without running a cycle",
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	vault := vaultstore.Open(vaultRoot)
	nodes, err := thought.Scan(vault)
	if err != nil {
		return fmt.Errorf("scan thoughts: %w", err)
	}
	agg := thought.Evaluate(nodes, time.Now().UTC())
	topo := thought.BuildTopology(nodes)

	if graphJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Aggregate thought.Aggregate `json:"aggregate"`
			Topology  thought.Topology  `json:"topology"`
		}{agg, topo})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "nodes scored: %d, orphan rate: %.2f, avg impact: %.2f\n",
		len(agg.Scored), agg.OrphanRate, agg.AvgImpactScore)
	fmt.Fprintf(out, "maps: %d, thin maps: %v\n", len(topo.Maps), topo.ThinMaps)
	fmt.Fprintf(out, "sink nodes: %v\n", topo.SinkNodes)
	fmt.Fprintf(out, "confidence distribution: %v\n", topo.ConfidenceDistribution)
	return nil
}
