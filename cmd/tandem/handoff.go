package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/handoff"
)

var (
	handoffTo      string
	handoffNotes   string
	handoffDryRun  bool
	handoffPending bool
	handoffTarget  string
	handoffJSON    bool
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Create and track handoffs between agents",
}

var handoffCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Build a role-filtered handoff for the next agent",
	Long: `Render a handoff from --agent to --to, filtered for the role the target
resolves to, score it and register it. --dry-run prints it without saving.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		if agentName == "" {
			fatal("Missing source agent", fmt.Errorf("pass --agent or set TANDEM_AGENT"))
		}
		req := handoff.Request{SourceAgent: agentName, TargetAgent: handoffTo, Notes: handoffNotes}

		if handoffDryRun {
			pkg, err := ws.Handoffs.Prepare(ctx, req)
			if err != nil {
				fatal("Failed to build handoff", err)
			}
			fmt.Print(pkg.Content)
			fmt.Fprintf(os.Stderr, "score %d (%s), missing: %s\n", pkg.Validation.Score, pkg.Validation.Grade, orDash(strings.Join(pkg.Validation.Missing, ", ")))
			return
		}

		h, v, err := ws.Handoffs.Create(ctx, req)
		if err != nil {
			fatal("Failed to create handoff", err)
		}
		fmt.Printf("%s\t%s\t%d (%s)\t%s\n", h.ID, h.TargetAgentType, v.Score, v.Grade, h.Path)
	},
}

var handoffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered handoffs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		var (
			entries []core.RegistryEntry
			err     error
		)
		if handoffPending || handoffTarget != "" {
			entries, err = ws.Service.PendingHandoffs(ctx, handoffTarget)
		} else {
			entries, err = ws.Registry.List(ctx)
		}
		if err != nil {
			fatal("Failed to list handoffs", err)
		}
		if handoffJSON {
			printJSON(entries)
			return
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s -> %s (%s)\t%d %s\t%s\t%s\n",
				e.HandoffID, e.SourceAgent, e.TargetAgent, orDash(e.TargetAgentType),
				e.ValidationScore, e.Grade, e.Status, stamp(e.Timestamp))
		}
	},
}

var handoffShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a rendered handoff",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		content, err := ws.Registry.Content(ctx, args[0])
		if err != nil {
			fatal("Failed to read handoff", err)
		}
		fmt.Print(content)
	},
}

var handoffStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize handoff quality",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		stats, err := ws.Service.HandoffStats(ctx)
		if err != nil {
			fatal("Failed to compute stats", err)
		}
		if handoffJSON {
			printJSON(stats)
			return
		}
		fmt.Printf("Handoffs: %d\nAverage score: %.1f\n", stats.Count, stats.AverageScore)
		grades := make([]string, 0, len(stats.Grades))
		for g := range stats.Grades {
			grades = append(grades, g)
		}
		sort.Strings(grades)
		for _, g := range grades {
			fmt.Printf("  %s: %d\n", g, stats.Grades[g])
		}
	},
}

var handoffTransitionCmd = &cobra.Command{
	Use:   "transition <id> <status>",
	Short: "Move a handoff to in_progress, completed or rejected",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		entry, err := ws.Service.TransitionHandoff(ctx, args[0], core.HandoffStatus(args[1]), requireSession())
		if err != nil {
			fatal("Failed to transition handoff", err)
		}
		fmt.Printf("%s is now %s\n", entry.HandoffID, entry.Status)
	},
}

func init() {
	rootCmd.AddCommand(handoffCmd)
	handoffCmd.AddCommand(handoffCreateCmd, handoffListCmd, handoffShowCmd, handoffStatsCmd, handoffTransitionCmd)

	handoffCreateCmd.Flags().StringVar(&handoffTo, "to", "", "Target agent label")
	handoffCreateCmd.Flags().StringVar(&handoffNotes, "notes", "", "Free-form notes for the target agent")
	handoffCreateCmd.Flags().BoolVar(&handoffDryRun, "dry-run", false, "Print the handoff without registering it")
	_ = handoffCreateCmd.MarkFlagRequired("to")

	handoffListCmd.Flags().BoolVar(&handoffPending, "pending", false, "Only pending handoffs")
	handoffListCmd.Flags().StringVar(&handoffTarget, "target", "", "Only pending handoffs for this target agent")
	handoffListCmd.Flags().BoolVar(&handoffJSON, "json", false, "Output in JSON format")
	handoffStatsCmd.Flags().BoolVar(&handoffJSON, "json", false, "Output in JSON format")
}
