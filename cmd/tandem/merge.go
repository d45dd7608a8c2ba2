package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <type> <base> <a> <b>",
	Short: "Merge two versions of a document",
	Long: `Merge two divergent versions and print the result. Decision logs, shared
context and progress are unioned; other types keep the later update. Pass an
empty base ("") when there is none.`,
	Args: cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		base := ""
		if args[1] != "" {
			base = readInput(args[1])
		}
		fmt.Print(ws.Service.Merge(ctx, parseType(args[0]), base, readInput(args[2]), readInput(args[3])))
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
