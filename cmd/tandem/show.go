package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Print a shared document",
	Long:  `Print the raw markdown of a document, or its parsed form with --json.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		t := documentType(args[0])

		if showJSON {
			printJSON(ws.Service.Load(ctx, t))
			return
		}
		content, err := ws.Service.Read(ctx, t)
		if err != nil {
			fatal("Failed to read document", err)
		}
		fmt.Print(content)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output the parsed record as JSON")
}
