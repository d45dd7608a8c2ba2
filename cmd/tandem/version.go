package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	versionFile  string
	versionLimit int
	versionJSON  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage document versions",
}

var versionCreateCmd = &cobra.Command{
	Use:   "create <type>",
	Short: "Snapshot a document",
	Long: `Snapshot the current content of a document, or the content of --file
("-" for stdin), attributed to --session and --agent.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		t := parseType(args[0])
		session := requireSession()

		var (
			id  string
			err error
		)
		if versionFile != "" {
			id, err = ws.Service.CreateVersion(ctx, t, readInput(versionFile), session, agentName)
		} else {
			id, err = ws.Service.Checkpoint(ctx, documentType(args[0]), session, agentName)
		}
		if err != nil {
			fatal("Failed to create version", err)
		}
		fmt.Println(id)
	},
}

var versionListCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List versions of a document, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		versions, err := ws.Service.RecentVersions(ctx, parseType(args[0]), versionLimit)
		if err != nil {
			fatal("Failed to list versions", err)
		}
		if versionJSON {
			printJSON(versions)
			return
		}
		for _, v := range versions {
			fmt.Printf("%s\t%s\t%s\t%s\t%.12s\n", v.ID, stamp(v.Timestamp), v.SessionID, orDash(v.Agent), v.Hash)
		}
	},
}

var versionRollbackCmd = &cobra.Command{
	Use:   "rollback <type> <version-id>",
	Short: "Restore a document to a previous version",
	Long:  `Back up the current content as a new version, then restore the given one.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		v, err := ws.Service.Rollback(ctx, documentType(args[0]), args[1])
		if err != nil {
			fatal("Failed to roll back", err)
		}
		fmt.Printf("Restored %s from %s (%s)\n", v.ContextType, v.ID, stamp(v.Timestamp))
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionCreateCmd, versionListCmd, versionRollbackCmd)

	versionCreateCmd.Flags().StringVarP(&versionFile, "file", "f", "", "Snapshot this file instead of the current document (- for stdin)")
	versionListCmd.Flags().IntVarP(&versionLimit, "limit", "n", 0, "Maximum number of versions (0 = all)")
	versionListCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
}
