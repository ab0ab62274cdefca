package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	xe "github.com/opst/somigrate/pkg/errors"
	"github.com/opst/somigrate/pkg/savedobjects/indexmeta"
	"github.com/opst/somigrate/pkg/savedobjects/indextypes"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
	"k8s.io/apimachinery/pkg/util/sets"
)

// MetaStore reads and writes `_meta` of indices.
type MetaStore interface {
	// IndexMeta returns `_meta` of the index and whether the index exists.
	IndexMeta(ctx context.Context, index string) (*indexmeta.Meta, bool, error)

	// PutMeta replaces `_meta` of an existing index.
	PutMeta(ctx context.Context, index string, meta indexmeta.Meta) error

	// CreateIndex creates a new index with `_meta`.
	CreateIndex(ctx context.Context, index string, meta indexmeta.Meta) error
}

// Coordinator plans and applies migrations of indices in a MetaStore.
type Coordinator struct {
	store    MetaStore
	planner  *Planner
	registry *registry.Registry
	logger   *log.Logger
}

// NewCoordinator creates Coordinator.
//
// logger can be nil to discard logs.
func NewCoordinator(store MetaStore, r *registry.Registry, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Coordinator{
		store:    store,
		planner:  NewPlanner(r),
		registry: r,
		logger:   logger,
	}
}

// survey reads `_meta` of the registered indices, the legacy ones and extra.
//
// Missing indices are not in the returned Live.
func (c *Coordinator) survey(ctx context.Context, extra ...string) (Live, error) {
	candidates := sets.New(c.registry.Indices()...).
		Insert(indextypes.MainIndex, indextypes.TaskManagerIndex).
		Insert(extra...)
	live := Live{}
	for _, index := range sets.List(candidates) {
		meta, exists, err := c.store.IndexMeta(ctx, index)
		if err != nil {
			return nil, xe.WrapWithNote(index, err)
		}
		if exists {
			live[index] = meta
		}
	}
	return live, nil
}

func (c *Coordinator) planAmong(index string, live Live) (Plan, error) {
	meta, exists := live[index]
	others := make(Live, len(live))
	for name, m := range live {
		if name != index {
			others[name] = m
		}
	}
	return c.planner.Plan(index, exists, meta, others)
}

// Plan reads the index and makes a plan for it.
//
// Other live indices are also read to find types moving into the index.
// The plan is returned with ErrIndexNewer, as Planner.Plan does.
func (c *Coordinator) Plan(ctx context.Context, index string) (Plan, error) {
	// the index can be out of the registry.
	live, err := c.survey(ctx, index)
	if err != nil {
		return Plan{}, err
	}
	return c.planAmong(index, live)
}

// PlanAll makes plans for all indices in the registry, sorted by index name.
//
// It does not stop at ErrIndexNewer. Errors of each index are joined.
func (c *Coordinator) PlanAll(ctx context.Context) ([]Plan, error) {
	live, err := c.survey(ctx)
	if err != nil {
		return []Plan{}, err
	}

	plans := []Plan{}
	var errs []error
	for _, index := range c.registry.Indices() {
		plan, err := c.planAmong(index, live)
		if err != nil {
			errs = append(errs, err)
			if !errors.Is(err, ErrIndexNewer) {
				continue
			}
		}
		plans = append(plans, plan)
	}
	return plans, errors.Join(errs...)
}

// Apply plans the index and brings it up to the plan.
//
// # Returns
//
// - Plan: the plan applied (or refused).
//
// - error: ErrIndexNewer when the index is newer, ErrReindexRequired when
// documents should be moved between indices, or errors from the MetaStore.
func (c *Coordinator) Apply(ctx context.Context, index string) (Plan, error) {
	plan, err := c.Plan(ctx, index)
	if err != nil {
		return plan, err
	}

	if retained := plan.RetainedTypes(); len(retained) != 0 {
		c.logger.Printf("%s: retained until their destinations are migrated: %v", index, retained)
	}

	switch plan.Action {
	case ActionNone:
		c.logger.Printf("%s: up to date", index)
	case ActionCreate:
		c.logger.Printf("%s: creating index", index)
		if err := c.store.CreateIndex(ctx, index, plan.Meta); err != nil {
			return plan, xe.WrapWithNote(index, err)
		}
	case ActionUpdateMappings:
		c.logger.Printf(
			"%s: updating mappings (pickup: %v)", index, plan.PickupTypes(),
		)
		if err := c.store.PutMeta(ctx, index, plan.Meta); err != nil {
			return plan, xe.WrapWithNote(index, err)
		}
	case ActionReindex:
		return plan, fmt.Errorf(
			"%w: %s: types moved in: %v", ErrReindexRequired, index, plan.TypesWith(MovedIn),
		)
	default:
		return plan, fmt.Errorf("migration: unknown action: %s", plan.Action)
	}
	return plan, nil
}
