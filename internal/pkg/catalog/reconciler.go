package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/metrics"
)

// CleanupResult reports the deletion phase. A failed cleanup leaves stale
// rows behind but never aborts the upsert phase.
type CleanupResult struct {
	Deleted int   `json:"deleted"`
	Err     error `json:"-"`
}

func (c CleanupResult) OK() bool { return c.Err == nil }

// Result is what a reconciliation run reports back.
type Result struct {
	UpdatedAt time.Time     `json:"updatedAt"`
	Count     int           `json:"count"`
	Stale     []string      `json:"stale"`
	Cleanup   CleanupResult `json:"cleanup"`
}

// Plan is the diff between the persisted catalog and a snapshot.
type Plan struct {
	// Stale are ids of persisted rows to delete.
	Stale []string
	// Rows are the snapshot rows to upsert, deduplicated by id (last wins).
	Rows []models.PriceListRow
	IDs  []string
}

// Reconciler makes the persisted catalog mirror a snapshot.
type Reconciler struct {
	backend docstore.Backend
	now     func() time.Time
}

// NewReconciler writes through backend, normally Paths.Active().
func NewReconciler(backend docstore.Backend) *Reconciler {
	return &Reconciler{backend: backend, now: time.Now}
}

// WithClock replaces the timestamp source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func (r *Reconciler) ensureBackend() error {
	if r.backend == nil {
		return fmt.Errorf("%w: set DB_USER/DB_PASSWORD/DB_NAME or CACHE_HOST before reconciling", docstore.ErrNotConfigured)
	}
	return nil
}

// Diff validates the snapshot and computes the deletion and upsert sets
// without writing anything.
//
// Deletion is scoped: only persisted rows whose (segment, billing cycle) group
// appears in the snapshot are candidates, so a partial snapshot never prunes
// groups it did not mention.
func (r *Reconciler) Diff(ctx context.Context, snapshot []models.PriceListRow) (*Plan, error) {
	if err := r.ensureBackend(); err != nil {
		return nil, err
	}
	if err := ValidateSnapshot(snapshot); err != nil {
		return nil, err
	}

	existing, err := r.backend.List(ctx, models.CatalogCollection)
	if err != nil {
		if errors.Is(err, docstore.ErrDatabaseAbsent) {
			return nil, err
		}
		return nil, fmt.Errorf("list persisted catalog on %s path: %w", r.backend.Name(), err)
	}

	plan := &Plan{}
	incoming := make(map[groupKey]map[string]struct{})
	position := make(map[string]int, len(snapshot))
	for _, row := range snapshot {
		g := groupOf(row)
		if incoming[g] == nil {
			incoming[g] = make(map[string]struct{})
		}
		incoming[g][subKeyOf(row)] = struct{}{}

		id := DeriveID(row)
		if i, ok := position[id]; ok {
			plan.Rows[i] = row
			continue
		}
		position[id] = len(plan.Rows)
		plan.Rows = append(plan.Rows, row)
		plan.IDs = append(plan.IDs, id)
	}

	for _, doc := range existing {
		row := rowFromDocument(doc)
		subKeys, covered := incoming[groupOf(row)]
		if !covered {
			continue
		}
		_, present := subKeys[subKeyOf(row)]
		_, sameID := position[doc.ID]
		// A present sub-key stored under a non-derived id is a duplicate of
		// the row about to be written.
		if !present || !sameID {
			plan.Stale = append(plan.Stale, doc.ID)
		}
	}
	return plan, nil
}

// Reconcile applies a snapshot: one deletion batch, then one batch with
// every upsert plus the catalog meta record. The two batches are separate
// round trips; both are idempotent, so a failed run is safe to repeat.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot []models.PriceListRow) (*Result, error) {
	plan, err := r.Diff(ctx, snapshot)
	if err != nil {
		metrics.ReconcileFinished(0, 0, false, err)
		return nil, err
	}

	res, err := r.apply(ctx, r.backend, plan)
	if err != nil {
		metrics.ReconcileFinished(0, 0, false, err)
		return nil, err
	}
	metrics.ReconcileFinished(res.Count, res.Cleanup.Deleted, !res.Cleanup.OK(), nil)
	return res, nil
}

// Preview runs the same reconciliation against an in-memory copy of the
// catalog and reports what a real run would do. Nothing is written to the
// backend.
func (r *Reconciler) Preview(ctx context.Context, snapshot []models.PriceListRow) (*Result, error) {
	plan, err := r.Diff(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	scratch, err := docstore.CopyOf(ctx, r.backend, models.CatalogCollection, models.CatalogMetaCollection)
	if err != nil {
		return nil, fmt.Errorf("copy catalog from %s path: %w", r.backend.Name(), err)
	}
	return r.apply(ctx, scratch, plan)
}

func (r *Reconciler) apply(ctx context.Context, backend docstore.Backend, plan *Plan) (*Result, error) {
	res := &Result{Stale: plan.Stale}
	if len(plan.Stale) > 0 {
		ops := make([]docstore.Op, 0, len(plan.Stale))
		for _, id := range plan.Stale {
			ops = append(ops, docstore.Delete(models.CatalogCollection, id))
		}
		if err := backend.BatchWrite(ctx, ops); err != nil {
			log.Warnf("[Reconcile] Deleting %d stale rows failed, continuing with upserts: %v", len(ops), err)
			res.Cleanup.Err = err
		} else {
			res.Cleanup.Deleted = len(ops)
		}
	}

	now := r.now().UTC()
	ops := make([]docstore.Op, 0, len(plan.Rows)+1)
	for i, row := range plan.Rows {
		ops = append(ops, docstore.Upsert(models.CatalogCollection, plan.IDs[i], rowFields(row, now)))
	}
	meta := models.CatalogMeta{UpdatedAt: now, Count: len(plan.Rows)}
	ops = append(ops, docstore.Upsert(models.CatalogMetaCollection, models.CatalogMetaID, metaFields(meta)))

	if err := backend.BatchWrite(ctx, ops); err != nil {
		return nil, fmt.Errorf("upsert %d catalog rows on %s path: %w", len(plan.Rows), backend.Name(), err)
	}

	res.UpdatedAt = now
	res.Count = meta.Count
	log.Infof("[Reconcile] Catalog converged on %s path: %d rows upserted, %d stale deleted",
		backend.Name(), res.Count, res.Cleanup.Deleted)
	return res, nil
}

// Meta returns the freshness record written by the last reconciliation.
func (r *Reconciler) Meta(ctx context.Context) (*models.CatalogMeta, error) {
	if err := r.ensureBackend(); err != nil {
		return nil, err
	}
	doc, err := r.backend.Get(ctx, models.CatalogMetaCollection, models.CatalogMetaID)
	if err != nil {
		return nil, err
	}
	meta := metaFromDocument(*doc)
	return &meta, nil
}
