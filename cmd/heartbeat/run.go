package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/heartbeat/internal/config"
	"github.com/boshu2/heartbeat/internal/heartbeat"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

var (
	flagPhases           []string
	flagRunSlot          string
	flagDryRun           bool
	flagMaxActionsPerRun int
	flagTaskSelection    string
	flagRepairMode       string
	flagThresholdMode    string
	flagRunnerCommand    string
	flagLLMCommand       string
	flagRunnerTimeoutMs  int
	flagJSON             bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one heartbeat cycle over the vault",
	RunE:  runHeartbeat,
}

func init() {
	runCmd.Flags().StringSliceVar(&flagPhases, "phases", nil, "Phases to run (4a,5a,5b,5c,6,7); default all")
	runCmd.Flags().StringVar(&flagRunSlot, "slot", string(heartbeat.SlotManual), "Run slot: morning, evening, overnight, manual")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Record task candidates as advisory without executing them")
	runCmd.Flags().IntVar(&flagMaxActionsPerRun, "max-actions-per-run", 0, "Cap on tasks executed this cycle (0 = config default)")
	runCmd.Flags().StringVar(&flagTaskSelection, "task-selection", "", "Task selection strategy: queue-first or aligned-first")
	runCmd.Flags().StringVar(&flagRepairMode, "repair-mode", heartbeat.ModeQueueOnly, "Repair handling: queue-only or execute")
	runCmd.Flags().StringVar(&flagThresholdMode, "threshold-mode", heartbeat.ModeQueueOnly, "Maintenance threshold handling: queue-only or execute")
	runCmd.Flags().StringVar(&flagRunnerCommand, "runner-command", "", "External command invoked per selected task")
	runCmd.Flags().StringVar(&flagLLMCommand, "llm-command", "", "External command invoked for brief/working-memory synthesis")
	runCmd.Flags().IntVar(&flagRunnerTimeoutMs, "runner-timeout-ms", 0, "Per-task runner timeout in milliseconds (0 = config default)")
	runCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the cycle result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	vault := vaultstore.Open(vaultRoot)

	var overrides *config.Config
	if flagMaxActionsPerRun != 0 || flagTaskSelection != "" || flagRunnerTimeoutMs != 0 {
		overrides = &config.Config{
			MaxActionsPerRun: flagMaxActionsPerRun,
			TaskSelection:    flagTaskSelection,
			RunnerTimeoutMs:  flagRunnerTimeoutMs,
		}
	}
	cfg, err := config.LoadWithPath(vault.Root, cfgFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine := heartbeat.New(vault, cfg)
	if flagRunnerCommand != "" {
		engine.Runner = &subprocessRunner{command: flagRunnerCommand, vaultRoot: vault.Root}
	}
	if flagLLMCommand != "" {
		engine.LLM = &subprocessLLM{command: flagLLMCommand}
	}

	opts := heartbeat.DefaultOptions()
	opts.RunSlot = heartbeat.RunSlot(flagRunSlot)
	opts.DryRun = flagDryRun
	opts.RepairMode = flagRepairMode
	opts.ThresholdMode = flagThresholdMode
	opts.RunnerCommand = flagRunnerCommand
	if flagMaxActionsPerRun != 0 {
		opts.MaxActionsPerRun = flagMaxActionsPerRun
	}
	if flagTaskSelection != "" {
		opts.TaskSelection = flagTaskSelection
	}
	if flagRunnerTimeoutMs != 0 {
		opts.RunnerTimeoutMs = flagRunnerTimeoutMs
	}
	if len(flagPhases) > 0 {
		phases := make([]heartbeat.Phase, 0, len(flagPhases))
		for _, p := range flagPhases {
			phases = append(phases, heartbeat.Phase(p))
		}
		opts.Phases = phases
	}

	res, err := engine.Run(context.Background(), opts)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printCycleSummary(cmd, res)
	return nil
}

func printCycleSummary(cmd *cobra.Command, res heartbeat.Result) {
	out := cmd.OutOrStdout()
	if res.DepthExceeded {
		fmt.Fprintln(out, "heartbeat depth limit reached; cycle skipped")
		return
	}
	fmt.Fprintf(out, "conditions: %v\n", res.Conditions)
	fmt.Fprintf(out, "tasks triggered: %d (repairs spawned %d, skipped %d)\n",
		len(res.TriggeredTasks), res.RepairsSpawned, res.RepairsSkipped)
	fmt.Fprintf(out, "thresholds acted: %d\n", res.ThresholdsActed)
	if res.BriefWritten {
		fmt.Fprintln(out, "morning brief written")
	}
	for _, r := range res.Recommendations {
		fmt.Fprintf(out, "- %s\n", r)
	}
}
