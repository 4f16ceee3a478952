package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/metrics"
)

var (
	// ErrPriceNotFound means no path holds a row for the request.
	ErrPriceNotFound = errors.New("no matching price row")
	// ErrNonNumericPrice means the row exists but carries no usable price.
	ErrNonNumericPrice = errors.New("price row has no numeric price")
	ErrInvalidRequest  = errors.New("invalid price request")
)

// Request identifies one catalog row.
type Request struct {
	Segment      string `json:"segment" query:"segment"`
	BillingCycle string `json:"billingCycle" query:"billingCycle"`
	PlanName     string `json:"planName,omitempty" query:"planName"`
	FunnelLevel  string `json:"funnelLevel,omitempty" query:"funnelLevel"`
	LeadGenName  string `json:"leadGenName,omitempty" query:"leadGenName"`
}

func (q Request) IsFunnel() bool { return models.IsFunnelSegment(q.Segment) }

// Validate checks that the request names a complete semantic key.
func (q Request) Validate() error {
	if strings.TrimSpace(q.Segment) == "" || strings.TrimSpace(q.BillingCycle) == "" {
		return fmt.Errorf("%w: segment and billingCycle are required", ErrInvalidRequest)
	}
	if q.IsFunnel() {
		if strings.TrimSpace(q.FunnelLevel) == "" || strings.TrimSpace(q.LeadGenName) == "" {
			return fmt.Errorf("%w: funnelLevel and leadGenName are required for Funnel Level", ErrInvalidRequest)
		}
		return nil
	}
	if strings.TrimSpace(q.PlanName) == "" {
		return fmt.Errorf("%w: planName is required", ErrInvalidRequest)
	}
	return nil
}

func (q Request) row() models.PriceListRow {
	return models.PriceListRow{
		Segment:      q.Segment,
		BillingCycle: q.BillingCycle,
		PlanName:     q.PlanName,
		FunnelLevel:  q.FunnelLevel,
		LeadGenName:  q.LeadGenName,
	}
}

// matches is the exact-match filter of a lookup.
func (q Request) matches(row models.PriceListRow) bool {
	if row.Segment != q.Segment || row.BillingCycle != q.BillingCycle {
		return false
	}
	if q.IsFunnel() {
		return row.FunnelLevel == q.FunnelLevel && row.LeadGenName == q.LeadGenName
	}
	return row.PlanName == q.PlanName
}

// Resolution is a resolved price and where it came from.
type Resolution struct {
	Row        models.PriceListRow `json:"row"`
	DocumentID string              `json:"documentId"`
	Price      decimal.Decimal     `json:"price"`
	Path       string              `json:"path"`
}

// Resolver looks prices up through the privileged path and then the degraded
// one. Order creation can run before the privileged path is populated, so an
// empty privileged answer is not final.
type Resolver struct {
	paths []docstore.Backend
}

func NewResolver(paths *docstore.Paths) *Resolver {
	return &Resolver{paths: paths.Ordered()}
}

// Resolve returns ErrPriceNotFound only when every path answered cleanly
// without a row; a transport failure on the last path consulted wins over it.
func (r *Resolver) Resolve(ctx context.Context, q Request) (*Resolution, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(r.paths) == 0 {
		return nil, fmt.Errorf("%w: no backend path available for price lookup", docstore.ErrNotConfigured)
	}

	var lastErr error
	for _, b := range r.paths {
		doc, err := findRow(ctx, b, q)
		switch {
		case err == nil:
			metrics.PriceLookup(b.Name(), "hit")
			return resolution(b, q, *doc)
		case errors.Is(err, ErrPriceNotFound):
			metrics.PriceLookup(b.Name(), "miss")
		default:
			metrics.PriceLookup(b.Name(), "error")
			log.Warnf("[Resolve] Lookup on %s path failed: %v", b.Name(), err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("resolve price: %w", lastErr)
	}
	return nil, ErrPriceNotFound
}

// findRow tries the derived id first and falls back to scanning the
// collection, which also finds rows written under legacy ids.
func findRow(ctx context.Context, b docstore.Backend, q Request) (*docstore.Document, error) {
	doc, err := b.Get(ctx, models.CatalogCollection, DeriveID(q.row()))
	switch {
	case err == nil:
		if q.matches(rowFromDocument(*doc)) {
			return doc, nil
		}
	case !errors.Is(err, docstore.ErrNotFound):
		return nil, err
	}

	docs, err := b.List(ctx, models.CatalogCollection)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if q.matches(rowFromDocument(docs[i])) {
			return &docs[i], nil
		}
	}
	return nil, ErrPriceNotFound
}

func resolution(b docstore.Backend, q Request, doc docstore.Document) (*Resolution, error) {
	price, err := extractPrice(q, doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s on %s path", err, doc.ID, b.Name())
	}
	return &Resolution{
		Row:        rowFromDocument(doc),
		DocumentID: doc.ID,
		Price:      price,
		Path:       b.Name(),
	}, nil
}

// extractPrice prefers a numeric minimumPrice for Funnel Level rows and uses
// price for everything else.
func extractPrice(q Request, fields map[string]any) (decimal.Decimal, error) {
	if q.IsFunnel() {
		if minimum, ok := numericValue(fields[fieldMinimumPrice]); ok {
			return minimum, nil
		}
	}
	if price, ok := numericValue(fields[fieldPrice]); ok {
		return price, nil
	}
	return decimal.Decimal{}, ErrNonNumericPrice
}
