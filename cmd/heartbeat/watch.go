package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/boshu2/heartbeat/internal/config"
	"github.com/boshu2/heartbeat/internal/heartbeat"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// watchDebounce is the delay after the last filesystem event before a
// heartbeat cycle fires, coalescing bursts of writes (e.g. an editor
// session saving several thoughts in a row) into a single cycle.
const watchDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vault and run a heartbeat cycle on activity",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	vault := vaultstore.Open(vaultRoot)
	for _, dir := range []string{vaultstore.DirInbox, vaultstore.DirThoughts, vaultstore.DirQueue} {
		if err := watcher.Add(vault.Path(dir)); err != nil {
			verbosePrintf("watch: could not watch %s: %v\n", dir, err)
		}
	}

	cfg, err := config.LoadWithPath(vault.Root, cfgFile, nil)
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

	out := cmd.OutOrStdout()
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "watch error: %v\n", err)

		case <-debounce.C:
			opts := heartbeat.DefaultOptions()
			opts.RunSlot = heartbeat.SlotManual
			res, err := engine.Run(context.Background(), opts)
			if err != nil {
				fmt.Fprintf(out, "cycle error: %v\n", err)
				continue
			}
			printCycleSummary(cmd, res)
		}
	}
}
