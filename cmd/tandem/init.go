package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/tandem"
	"github.com/aretw0/tandem/internal/platform"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a workspace",
	Long: `Create the workspace skeleton (document, versions, locks, handoffs and archive
directories) and a default tandem.yaml. Existing files are left untouched.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(context.Background(), tandem.WithAutoInit(true))

		written, err := platform.WriteConfig(filepath.Join(ws.Root, tandem.ConfigFile), ws.Config)
		if err != nil {
			fatal("Failed to write config", err)
		}
		if written {
			fmt.Println("Wrote", tandem.ConfigFile)
		}
		fmt.Println("Initialized tandem workspace in", ws.Root)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
