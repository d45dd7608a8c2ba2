package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/tandem/pkg/core"
)

var (
	updateStrategy   string
	updateCheckpoint bool
	updateLock       bool
	updateTTL        time.Duration
)

var updateCmd = &cobra.Command{
	Use:   "update <type> <file>",
	Short: "Write a document through the coordination workflow",
	Long: `Optionally lock the document, check for concurrent modifications, merge or
reject on conflict, write, and optionally snapshot the result. Exits with
status 2 when nothing was written.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		strategy := core.Strategy(updateStrategy)
		switch strategy {
		case core.StrategyMerge, core.StrategyOverwrite, core.StrategyReject:
		default:
			fatal("Invalid strategy", fmt.Errorf("%q (want merge, overwrite or reject)", updateStrategy))
		}

		res, err := ws.Service.Update(ctx, core.UpdateRequest{
			Type:       documentType(args[0]),
			Content:    readInput(args[1]),
			SessionID:  requireSession(),
			Agent:      agentName,
			Strategy:   strategy,
			Checkpoint: updateCheckpoint,
			Lock:       updateLock,
			LockTTL:    updateTTL,
		})
		if err != nil {
			fatal("Update failed", err)
		}

		if res.Lock != nil && !res.Lock.Acquired {
			fmt.Printf("Locked by %s until %s\n", res.Lock.LockedBy, stamp(res.Lock.ExpiresAt))
			os.Exit(2)
		}
		if !res.Written {
			fmt.Printf("Rejected: %s with %d concurrent version(s)\n", res.Conflict.Kind, len(res.Conflict.Concurrent))
			os.Exit(2)
		}
		switch {
		case res.Merged:
			fmt.Println("Merged with concurrent changes")
		case res.Conflict.HasConflict:
			fmt.Println("Overwrote concurrent changes")
		default:
			fmt.Println("Written")
		}
		if res.VersionID != "" {
			fmt.Println("Version", res.VersionID)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&updateStrategy, "strategy", string(core.StrategyMerge), "On conflict: merge, overwrite or reject")
	updateCmd.Flags().BoolVar(&updateCheckpoint, "checkpoint", true, "Snapshot the written content")
	updateCmd.Flags().BoolVar(&updateLock, "lock", false, "Hold the document lock for the duration of the write")
	updateCmd.Flags().DurationVar(&updateTTL, "ttl", 0, "Lock TTL (default from configuration)")
}
