// Package handoff builds role-filtered handoff packages from the shared
// documents: it resolves the target role, loads and filters the context,
// derives next actions, renders the markdown and scores it.
package handoff

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tandem/pkg/core"
)

// recentDecisions is how much of the decision log a handoff considers.
const recentDecisions = 10

var validate = validator.New()

// Request describes a handoff to create.
type Request struct {
	SourceAgent string `validate:"required,max=200"`
	TargetAgent string `validate:"required,max=200"`
	Notes       string `validate:"max=20000"`
}

// Package is a rendered handoff before it is registered.
type Package struct {
	ID         string
	Role       Role
	Content    string
	Validation Validation
	Created    time.Time
}

// Builder creates handoffs.
type Builder struct {
	store    core.DocumentStore
	registry core.HandoffRegistry
	resolver *Resolver
	recorder core.Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

// Option customizes a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r core.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithResolver replaces the default role resolver.
func WithResolver(r *Resolver) Option {
	return func(b *Builder) {
		if r != nil {
			b.resolver = r
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDGenerator overrides handoff id generation.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(b *Builder) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// NewID returns "handoff-<epochMs>-<8 hex chars>".
func NewID(now time.Time) string {
	return fmt.Sprintf("handoff-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// NewBuilder creates a builder reading from store and registering into registry.
func NewBuilder(store core.DocumentStore, registry core.HandoffRegistry, opts ...Option) *Builder {
	b := &Builder{
		store:    store,
		registry: registry,
		resolver: NewResolver(nil),
		recorder: core.NopRecorder,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    NewID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// snapshot is the context a handoff is built from.
type snapshot struct {
	shared   *core.SharedContext
	log      *core.DecisionLog
	progress *core.ProgressSummary
	quality  *core.QualityMetrics
}

// load reads the four documents concurrently. Missing or unparsable documents
// come back as defaults.
func (b *Builder) load(ctx context.Context) (snapshot, error) {
	var s snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.shared, _ = b.store.Load(gctx, core.SharedContextType).(*core.SharedContext)
		return gctx.Err()
	})
	g.Go(func() error {
		s.log, _ = b.store.Load(gctx, core.DecisionsType).(*core.DecisionLog)
		return gctx.Err()
	})
	g.Go(func() error {
		s.progress, _ = b.store.Load(gctx, core.ProgressType).(*core.ProgressSummary)
		return gctx.Err()
	})
	g.Go(func() error {
		s.quality, _ = b.store.Load(gctx, core.QualityType).(*core.QualityMetrics)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return s, err
	}

	if s.shared == nil {
		s.shared = &core.SharedContext{}
	}
	if s.log == nil {
		s.log = &core.DecisionLog{}
	}
	if s.progress == nil {
		s.progress = &core.ProgressSummary{}
	}
	if s.quality == nil {
		s.quality = &core.QualityMetrics{}
	}
	s.log = &core.DecisionLog{LastUpdated: s.log.LastUpdated, Decisions: s.log.Last(recentDecisions)}
	return s, nil
}

// Prepare renders and scores a handoff without persisting it.
func (b *Builder) Prepare(ctx context.Context, req Request) (Package, error) {
	if err := validate.Struct(req); err != nil {
		return Package{}, fmt.Errorf("invalid handoff request: %w", err)
	}
	s, err := b.load(ctx)
	if err != nil {
		return Package{}, err
	}

	role := b.resolver.Resolve(req.TargetAgent)
	profile := ProfileFor(role)
	now := b.now().UTC()

	v := view{
		ID:          b.newID(now),
		Source:      req.SourceAgent,
		Target:      req.TargetAgent,
		Role:        role,
		Created:     now,
		Notes:       req.Notes,
		Profile:     profile,
		Shared:      s.shared,
		Progress:    s.progress,
		Decisions:   FilterDecisions(profile, s.log),
		Relevant:    RelevantContent(profile, s.shared, s.progress),
		NextActions: NextActions(profile, s.shared.NextSteps, ActionLimit(role)),
		Blockers:    Blockers(s.progress, s.log),
	}
	if latest, ok := s.quality.Latest(); ok {
		v.Quality = &latest
	}

	content := render(v)
	validation := Validate(content, profile.Required)
	b.logger.Debug("handoff prepared", "id", v.ID, "role", role, "score", validation.Score, "missing", validation.Missing)

	return Package{
		ID:         v.ID,
		Role:       role,
		Content:    content,
		Validation: validation,
		Created:    now,
	}, nil
}

// Create prepares a handoff and registers it. A low validation score never
// blocks persistence.
func (b *Builder) Create(ctx context.Context, req Request) (core.Handoff, Validation, error) {
	pkg, err := b.Prepare(ctx, req)
	if err != nil {
		return core.Handoff{}, Validation{}, err
	}
	h, err := b.registry.Register(ctx, core.Handoff{
		ID:              pkg.ID,
		SourceAgent:     req.SourceAgent,
		TargetAgent:     req.TargetAgent,
		TargetAgentType: string(pkg.Role),
		Timestamp:       pkg.Created,
		Content:         pkg.Content,
		ValidationScore: pkg.Validation.Score,
		Grade:           pkg.Validation.Grade,
		Status:          core.HandoffPending,
	})
	if err != nil {
		return core.Handoff{}, pkg.Validation, fmt.Errorf("failed to register handoff: %w", err)
	}
	b.recorder.HandoffCreated(string(pkg.Role), pkg.Validation.Grade)
	if pkg.Validation.Score < 60 {
		b.logger.Warn("handoff below passing grade", "id", h.ID, "score", pkg.Validation.Score, "missing", pkg.Validation.Missing)
	}
	return h, pkg.Validation, nil
}
