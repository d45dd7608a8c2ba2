package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Inspect concurrent modifications",
}

var conflictCheckCmd = &cobra.Command{
	Use:   "check <type> <file>",
	Short: "Check a proposed write for concurrent modifications",
	Long: `Compare the proposed content with the current document and the recent
versions of other sessions. Exits with status 2 when a conflict is found.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		c, err := ws.Service.DetectConflict(ctx, parseType(args[0]), readInput(args[1]), requireSession())
		if err != nil {
			fatal("Failed to check conflicts", err)
		}
		if !c.HasConflict {
			fmt.Println("No conflict")
			return
		}
		fmt.Printf("Conflict: %s\n", c.Kind)
		for _, v := range c.Concurrent {
			fmt.Printf("  %s by %s (%s) at %s\n", v.ID, v.SessionID, orDash(v.Agent), stamp(v.Timestamp))
		}
		os.Exit(2)
	},
}

func init() {
	rootCmd.AddCommand(conflictCmd)
	conflictCmd.AddCommand(conflictCheckCmd)
}
