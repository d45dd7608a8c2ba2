package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/handoff"
)

// Workspace is an opened coordination root with every component wired.
type Workspace struct {
	Root       string
	Config     Config
	Service    *core.Service
	Handoffs   *handoff.Builder
	Repository *fs.Repository
	Ledger     *fs.Ledger
	Locks      *fs.Locks
	Registry   *fs.Registry
}

// Open wires the filesystem adapters, the coordination service and the
// handoff builder for root.
//
//	ws, err := platform.Open(ctx, "./.agent-context", platform.WithLogger(logger))
func Open(ctx context.Context, root string, opts ...Option) (*Workspace, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if o.mustExist {
		info, err := os.Stat(abs)
		if err != nil {
			return nil, core.IOError("", abs, err)
		}
		if !info.IsDir() {
			return nil, core.IOError("", abs, fmt.Errorf("not a directory"))
		}
	}

	cfgPath := o.configFile
	if cfgPath == "" {
		cfgPath = filepath.Join(abs, ConfigFile)
	}
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	for _, fn := range o.overrides {
		fn(&cfg)
	}

	fsConfig := fs.Config{
		Root:            abs,
		Logger:          o.logger,
		Clock:           o.clock,
		MaxVersions:     cfg.MaxVersions,
		Thresholds:      cfg.Thresholds,
		GuardStaleAfter: cfg.GuardStaleAfter,
	}
	repo := fs.NewRepository(fsConfig, fs.NewMarkdownCodec())
	if o.autoInit {
		if err := repo.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	ledger := fs.NewLedger(fsConfig, repo)
	locks := fs.NewLocks(fsConfig)
	registry := fs.NewRegistry(fsConfig)

	svc := core.NewService(core.Components{
		Store:     repo,
		Codec:     fs.NewMarkdownCodec(),
		Ledger:    ledger,
		Locks:     locks,
		Registry:  registry,
		Compactor: repo,
	},
		core.WithServiceLogger(o.logger),
		core.WithRecorder(o.recorder),
		core.WithClock(o.clock),
		core.WithConflictWindow(cfg.ConflictWindow),
		core.WithRecentVersions(cfg.RecentVersions),
		core.WithLockTTL(cfg.LockTTL),
	)

	builder := handoff.NewBuilder(repo, registry,
		handoff.WithLogger(o.logger),
		handoff.WithRecorder(o.recorder),
		handoff.WithClock(o.clock),
		handoff.WithResolver(handoff.NewResolver(cfg.Roles)),
	)

	o.logger.Debug("workspace opened", "root", abs, "config", cfgPath)
	return &Workspace{
		Root:       abs,
		Config:     cfg,
		Service:    svc,
		Handoffs:   builder,
		Repository: repo,
		Ledger:     ledger,
		Locks:      locks,
		Registry:   registry,
	}, nil
}
