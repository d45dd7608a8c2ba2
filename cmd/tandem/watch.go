package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/tandem/pkg/adapters/lifecycle"
	"github.com/aretw0/tandem/pkg/core"
)

var watchCmd = &cobra.Command{
	Use:   "watch [type...]",
	Short: "Stream workspace changes until interrupted",
	Long: `Print document, lock and handoff changes as they happen. Types restrict the
stream to those documents; handoff events are always shown.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		ws := openWorkspace(ctx)

		var types []core.ContextType
		for _, a := range args {
			types = append(types, parseType(a))
		}

		events, err := ws.Service.Watch(ctx)
		if err != nil {
			fatal("Failed to start watcher", err)
		}
		src := lifecycle.NewSource(events, types...)
		if err := src.Start(ctx); err != nil {
			fatal("Failed to start event source", err)
		}

		slog.Info("watching workspace", "root", ws.Root)
		for e := range src.Events() {
			fmt.Println(e.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
