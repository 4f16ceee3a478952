package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func planRow(segment, cycle, plan, price string) models.PriceListRow {
	return models.PriceListRow{Segment: segment, BillingCycle: cycle, PlanName: plan, Price: dec(price)}
}

func funnelRow(cycle, level, leadGen, price, minimum string) models.PriceListRow {
	row := models.PriceListRow{
		Segment:      models.SegmentFunnelLevel,
		BillingCycle: cycle,
		FunnelLevel:  level,
		LeadGenName:  leadGen,
		Price:        dec(price),
	}
	if minimum != "" {
		row.MinimumPrice = dec(minimum)
	}
	return row
}

// seed writes rows under their derived ids without going through a reconcile.
func seed(t *testing.T, b docstore.Backend, rows ...models.PriceListRow) {
	t.Helper()
	var ops []docstore.Op
	for _, row := range rows {
		ops = append(ops, docstore.Upsert(models.CatalogCollection, DeriveID(row), rowFields(row, fixedNow())))
	}
	require.NoError(t, b.BatchWrite(context.Background(), ops))
}

func persistedIDs(t *testing.T, b docstore.Backend) []string {
	t.Helper()
	docs, err := b.List(context.Background(), models.CatalogCollection)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

// failingBackend fails batches that contain a delete, or every call when all is set.
type failingBackend struct {
	docstore.Backend
	failDeletes bool
	all         error
}

func (f *failingBackend) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if f.all != nil {
		return nil, f.all
	}
	return f.Backend.List(ctx, collection)
}

func (f *failingBackend) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if f.all != nil {
		return nil, f.all
	}
	return f.Backend.Get(ctx, collection, id)
}

func (f *failingBackend) BatchWrite(ctx context.Context, ops []docstore.Op) error {
	if f.all != nil {
		return f.all
	}
	if f.failDeletes {
		for _, op := range ops {
			if op.Kind == docstore.OpDelete {
				return errors.New("permission denied")
			}
		}
	}
	return f.Backend.BatchWrite(ctx, ops)
}
