package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/tandem"
	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/adapters/fs"
)

func main() {
	sessions := flag.Int("sessions", 8, "Number of concurrent sessions")
	rounds := flag.Int("rounds", 25, "Decisions appended per session")
	keep := flag.Bool("keep", false, "Keep the benchmark workspace after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "tandem_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()
	codec := fs.NewMarkdownCodec()
	ws, err := tandem.Open(ctx, benchDir, tandem.WithLogger(logger))
	if err != nil {
		panic(err)
	}

	fmt.Printf("Running %d sessions x %d decisions in %s...\n", *sessions, *rounds, benchDir)

	var (
		wg        sync.WaitGroup
		retries   atomic.Int64
		merges    atomic.Int64
		conflicts atomic.Int64
	)
	start := time.Now()
	for s := range *sessions {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			session := fmt.Sprintf("bench-%02d", s)
			for r := range *rounds {
				for {
					// Each session appends to what it last read; the lock keeps
					// the read-modify-write of one session from interleaving.
					log := ws.Service.Load(ctx, core.DecisionsType).(*core.DecisionLog)
					log.Append(core.Decision{
						Title:    fmt.Sprintf("%s decision %03d", session, r),
						Date:     time.Now().UTC(),
						Agent:    session,
						Decision: "benchmark",
						Status:   "accepted",
					})
					data, err := codec.Format(log)
					if err != nil {
						panic(err)
					}
					res, err := ws.Service.Update(ctx, core.UpdateRequest{
						Type:       core.DecisionsType,
						Content:    string(data),
						SessionID:  session,
						Agent:      session,
						Strategy:   core.StrategyMerge,
						Checkpoint: true,
						Lock:       true,
					})
					if err != nil {
						panic(err)
					}
					if res.Lock != nil && !res.Lock.Acquired {
						retries.Add(1)
						time.Sleep(time.Millisecond)
						continue
					}
					if res.Conflict.HasConflict {
						conflicts.Add(1)
					}
					if res.Merged {
						merges.Add(1)
					}
					break
				}
			}
		}(s)
	}
	wg.Wait()
	elapsed := time.Since(start)

	final := ws.Service.Load(ctx, core.DecisionsType).(*core.DecisionLog)
	want := *sessions * *rounds

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d writes):\n", want)
	fmt.Printf("  Elapsed:      %v (%v/write)\n", elapsed, elapsed/time.Duration(want))
	fmt.Printf("  Lock retries: %d\n", retries.Load())
	fmt.Printf("  Conflicts:    %d (merged %d)\n", conflicts.Load(), merges.Load())
	fmt.Printf("  Decisions:    %d of %d\n", len(final.Decisions), want)
	fmt.Printf("--------------------------------------------------\n")
}
