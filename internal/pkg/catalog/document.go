package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
)

const (
	fieldSegment      = "segment"
	fieldBillingCycle = "billingCycle"
	fieldPlanName     = "planName"
	fieldFunnelLevel  = "funnelLevel"
	fieldLeadGenName  = "leadGenName"
	fieldPrice        = "price"
	fieldMinimumPrice = "minimumPrice"
	fieldUpdatedAt    = "updatedAt"
	fieldCount        = "count"
)

// rowFields renders only the fields the row carries, so merge upserts leave
// everything else on the stored document alone.
func rowFields(row models.PriceListRow, updatedAt time.Time) map[string]any {
	fields := map[string]any{
		fieldSegment:      row.Segment,
		fieldBillingCycle: row.BillingCycle,
		fieldUpdatedAt:    updatedAt.UTC().Format(time.RFC3339Nano),
	}
	if row.IsFunnel() {
		fields[fieldFunnelLevel] = row.FunnelLevel
		fields[fieldLeadGenName] = row.LeadGenName
	} else {
		fields[fieldPlanName] = row.PlanName
	}
	if row.Price != nil {
		fields[fieldPrice] = row.Price.InexactFloat64()
	}
	if row.MinimumPrice != nil {
		fields[fieldMinimumPrice] = row.MinimumPrice.InexactFloat64()
	}
	return fields
}

// rowFromDocument reads the key fields and any numeric prices back.
func rowFromDocument(doc docstore.Document) models.PriceListRow {
	row := models.PriceListRow{
		Segment:      stringField(doc.Fields, fieldSegment),
		BillingCycle: stringField(doc.Fields, fieldBillingCycle),
		PlanName:     stringField(doc.Fields, fieldPlanName),
		FunnelLevel:  stringField(doc.Fields, fieldFunnelLevel),
		LeadGenName:  stringField(doc.Fields, fieldLeadGenName),
	}
	if p, ok := numericValue(doc.Fields[fieldPrice]); ok {
		row.Price = &p
	}
	if p, ok := numericValue(doc.Fields[fieldMinimumPrice]); ok {
		row.MinimumPrice = &p
	}
	if ts, err := time.Parse(time.RFC3339Nano, stringField(doc.Fields, fieldUpdatedAt)); err == nil {
		row.UpdatedAt = &ts
	}
	return row
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// numericValue accepts the shapes a price takes after a round trip through
// any backend, plus numeric strings written by older tooling.
func numericValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case decimal.Decimal:
		return n, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

func metaFields(meta models.CatalogMeta) map[string]any {
	return map[string]any{
		fieldUpdatedAt: meta.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldCount:     meta.Count,
	}
}

func metaFromDocument(doc docstore.Document) models.CatalogMeta {
	var meta models.CatalogMeta
	if ts, err := time.Parse(time.RFC3339Nano, stringField(doc.Fields, fieldUpdatedAt)); err == nil {
		meta.UpdatedAt = ts
	}
	if n, ok := numericValue(doc.Fields[fieldCount]); ok {
		meta.Count = int(n.IntPart())
	}
	return meta
}
