package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/tandem/pkg/core"
)

var compactForce bool

var compactCmd = &cobra.Command{
	Use:   "compact [type...]",
	Short: "Archive oversized documents",
	Long: `Archive documents over their size threshold and replace them with a condensed
summary. Without arguments every document is checked. --force compacts
regardless of size.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		types := core.DocumentTypes
		if len(args) > 0 {
			types = nil
			for _, a := range args {
				types = append(types, documentType(a))
			}
		}
		for _, t := range types {
			var (
				archived string
				err      error
			)
			if compactForce {
				archived, err = ws.Repository.Compact(ctx, t)
			} else {
				archived, err = ws.Repository.CompactIfNeeded(ctx, t)
			}
			if err != nil {
				fatal("Failed to compact "+string(t), err)
			}
			if archived != "" {
				fmt.Printf("%s archived to %s\n", t, archived)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(compactCmd)
	compactCmd.Flags().BoolVar(&compactForce, "force", false, "Compact regardless of size")
}
