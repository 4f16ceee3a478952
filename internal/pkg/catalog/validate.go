package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/ordermeta"
)

// ValidationError points at the first invalid row of a snapshot.
type ValidationError struct {
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snapshot row %d: %v", e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidateRow checks the fields a row needs before it may enter the catalog.
// Key fields must not contain the order metadata delimiters, otherwise an
// order for the row could not be encoded.
func ValidateRow(row models.PriceListRow) error {
	if err := row.Validate(); err != nil {
		return err
	}
	if row.IsFunnel() {
		if strings.TrimSpace(row.FunnelLevel) == "" || strings.TrimSpace(row.LeadGenName) == "" {
			return errors.New("funnelLevel and leadGenName are required for Funnel Level rows")
		}
	} else if strings.TrimSpace(row.PlanName) == "" {
		return errors.New("planName is required")
	}

	keyFields := []struct{ name, value string }{
		{"segment", row.Segment},
		{"billingCycle", row.BillingCycle},
		{"planName", row.PlanName},
		{"funnelLevel", row.FunnelLevel},
		{"leadGenName", row.LeadGenName},
	}
	for _, f := range keyFields {
		if ordermeta.ContainsDelimiter(f.value) {
			return fmt.Errorf("%s %q contains a reserved character (%s or %s)",
				f.name, f.value, ordermeta.Delimiter, ordermeta.IdentifierDelimiter)
		}
	}

	if row.Price != nil && row.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if row.MinimumPrice != nil && row.MinimumPrice.IsNegative() {
		return errors.New("minimumPrice must not be negative")
	}
	return nil
}

// ValidateSnapshot returns a *ValidationError for the first bad row.
func ValidateSnapshot(rows []models.PriceListRow) error {
	for i, row := range rows {
		if err := ValidateRow(row); err != nil {
			return &ValidationError{Index: i, Err: err}
		}
	}
	return nil
}
