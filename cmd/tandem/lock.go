package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	lockTTL  time.Duration
	lockJSON bool
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage advisory document locks",
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire <type>",
	Short: "Acquire or refresh the lock on a document",
	Long:  `Acquire the lock for --session. Exits with status 2 when another session holds it.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		res, err := ws.Service.AcquireLock(ctx, parseType(args[0]), requireSession(), lockTTL)
		if err != nil {
			fatal("Failed to acquire lock", err)
		}
		if !res.Acquired {
			fmt.Printf("Locked by %s until %s\n", res.LockedBy, stamp(res.ExpiresAt))
			os.Exit(2)
		}
		fmt.Printf("Acquired until %s\n", stamp(res.ExpiresAt))
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release <type>",
	Short: "Release a lock held by this session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		released, err := ws.Service.ReleaseLock(ctx, parseType(args[0]), requireSession())
		if err != nil {
			fatal("Failed to release lock", err)
		}
		if !released {
			fmt.Println("Not held by this session")
			os.Exit(2)
		}
		fmt.Println("Released")
	},
}

var lockSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired locks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		n, err := ws.Service.CleanupExpiredLocks(ctx)
		if err != nil {
			fatal("Failed to sweep locks", err)
		}
		fmt.Printf("Removed %d expired lock(s)\n", n)
	},
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored locks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)

		locks, err := ws.Locks.Held(ctx)
		if err != nil {
			fatal("Failed to list locks", err)
		}
		if lockJSON {
			printJSON(locks)
			return
		}
		now := ws.Service.Now()
		for _, l := range locks {
			state := "live"
			if !l.Live(now) {
				state = "expired"
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", l.ContextType, l.SessionID, stamp(l.Expires), state)
		}
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockAcquireCmd, lockReleaseCmd, lockSweepCmd, lockStatusCmd)

	lockAcquireCmd.Flags().DurationVar(&lockTTL, "ttl", 0, "Lock TTL (default from configuration)")
	lockStatusCmd.Flags().BoolVar(&lockJSON, "json", false, "Output in JSON format")
}
