package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/porter/internal/batch"
	"github.com/mesh-intelligence/porter/internal/mapping"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// Window optionally narrows a migration run to [From, To). The zero
// value means the full range. Only windowed entities (usage) honor it.
type Window struct {
	From time.Time
	To   time.Time
}

// Pipeline drives the seed and load phases over the entity DAG.
type Pipeline struct {
	store     *store.Store
	registry  *mapping.Registry
	scheduler *batch.Scheduler
	logger    *zap.Logger
	cfg       types.Config
}

// New wires a pipeline over the given store.
func New(s *store.Store, logger *zap.Logger, cfg types.Config) *Pipeline {
	cfg = cfg.WithDefaults()
	return &Pipeline{
		store:     s,
		registry:  mapping.New(s, logger),
		scheduler: batch.New(s, logger),
		logger:    logger.With(zap.String("component", "pipeline")),
		cfg:       cfg,
	}
}

// Seed assigns target identifiers for one entity and advances its
// lifecycle to seeded. Idempotent: re-seeding creates entries only for
// genuinely new source keys.
func (p *Pipeline) Seed(ctx context.Context, entity types.EntityType) (int64, error) {
	n, err := p.registry.Seed(ctx, entity)
	if err != nil {
		return 0, err
	}
	if err := p.store.Advance(ctx, entity, types.StateSeeded); err != nil {
		return n, err
	}
	return n, nil
}

// SeedAll seeds every entity in topological order and returns the
// per-entity count of newly created mapping entries.
func (p *Pipeline) SeedAll(ctx context.Context) (map[types.EntityType]int64, error) {
	order, err := Order()
	if err != nil {
		return nil, err
	}
	counts := make(map[types.EntityType]int64, len(order))
	for _, entity := range order {
		n, err := p.Seed(ctx, entity)
		if err != nil {
			return counts, fmt.Errorf("seed %s: %w", entity, err)
		}
		counts[entity] = n
	}
	return counts, nil
}

// Migrate loads one entity from staging into the target schema and
// advances its lifecycle to loaded. The entity must be seeded first.
// Loads are idempotent: every write is conflict-skip or guarded by an
// existence check on the traceability column.
func (p *Pipeline) Migrate(ctx context.Context, entity types.EntityType, win Window) (int64, error) {
	load, ok := p.loaders()[entity]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnknownEntity, entity)
	}

	state, err := p.store.State(ctx, entity)
	if err != nil {
		return 0, err
	}
	if state.Rank() < types.StateSeeded.Rank() {
		return 0, fmt.Errorf("%w: %s", types.ErrNotSeeded, entity)
	}

	n, err := load(ctx, win)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", entity, err)
	}
	if err := p.store.Advance(ctx, entity, types.StateLoaded); err != nil {
		return n, err
	}
	p.logger.Info("entity loaded",
		zap.String("entity", string(entity)),
		zap.Int64("rows", n))
	return n, nil
}

// MigrateAll loads every entity in dependency order. Entities within
// one topological level are mutually independent and run concurrently,
// bounded by cfg.Workers; the source connection degrades when
// oversubscribed, so the bound is enforced, not advisory. A level must
// finish completely before the next starts.
func (p *Pipeline) MigrateAll(ctx context.Context) (map[types.EntityType]int64, error) {
	levels, err := Levels()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	counts := make(map[types.EntityType]int64)
	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Workers)
		for _, entity := range level {
			g.Go(func() error {
				n, err := p.Migrate(gctx, entity, Window{})
				if err != nil {
					return err
				}
				mu.Lock()
				counts[entity] = n
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return counts, err
		}
	}
	return counts, nil
}
