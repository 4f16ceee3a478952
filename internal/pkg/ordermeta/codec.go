// Package ordermeta packs order context into the payment gateway's opaque
// custom_id field and recovers it when the order is read back.
package ordermeta

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PriceSync/app/models"
)

const (
	// Delimiter separates the top-level fields.
	Delimiter = "~"
	// IdentifierDelimiter joins funnel level and lead-gen name.
	IdentifierDelimiter = "|"
	// MaxLength is the gateway's custom_id limit.
	MaxLength = 127
)

var (
	ErrDelimiterInField = errors.New("metadata field contains a reserved delimiter")
	ErrTooLong          = fmt.Errorf("encoded metadata exceeds %d characters", MaxLength)
)

// Context is the order context carried through the gateway.
type Context struct {
	Segment      string           `json:"segment"`
	BillingCycle string           `json:"billingCycle"`
	Identifier   string           `json:"identifier"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
}

// Identifier returns the plan name, or funnel level and lead-gen name joined
// by IdentifierDelimiter for Funnel Level orders.
func Identifier(segment, planName, funnelLevel, leadGenName string) string {
	if models.IsFunnelSegment(segment) {
		return strings.TrimSpace(funnelLevel) + IdentifierDelimiter + strings.TrimSpace(leadGenName)
	}
	return strings.TrimSpace(planName)
}

// SplitIdentifier is the inverse of Identifier for funnel identifiers.
func SplitIdentifier(identifier string) (funnelLevel, leadGenName string, ok bool) {
	funnelLevel, leadGenName, ok = strings.Cut(identifier, IdentifierDelimiter)
	return funnelLevel, leadGenName, ok
}

// ContainsDelimiter reports whether s would break the encoding.
func ContainsDelimiter(s string) bool {
	return strings.Contains(s, Delimiter) || strings.Contains(s, IdentifierDelimiter)
}

// Encode joins the context fields. The identifier may contain
// IdentifierDelimiter; no field may contain Delimiter.
func Encode(c Context) (string, error) {
	if ContainsDelimiter(c.Segment) {
		return "", fmt.Errorf("%w: segment=%q", ErrDelimiterInField, c.Segment)
	}
	if ContainsDelimiter(c.BillingCycle) {
		return "", fmt.Errorf("%w: billingCycle=%q", ErrDelimiterInField, c.BillingCycle)
	}
	if strings.Contains(c.Identifier, Delimiter) {
		return "", fmt.Errorf("%w: identifier=%q", ErrDelimiterInField, c.Identifier)
	}

	amount := ""
	if c.Amount != nil {
		amount = c.Amount.StringFixed(2)
	}
	out := strings.Join([]string{c.Segment, c.BillingCycle, c.Identifier, amount}, Delimiter)
	if len(out) > MaxLength {
		return "", fmt.Errorf("%w: got %d", ErrTooLong, len(out))
	}
	return out, nil
}

// Decode never fails: missing parts stay empty and an absent or unparsable
// amount is left nil.
func Decode(s string) Context {
	parts := strings.Split(s, Delimiter)
	var c Context
	if len(parts) > 0 {
		c.Segment = parts[0]
	}
	if len(parts) > 1 {
		c.BillingCycle = parts[1]
	}
	if len(parts) > 2 {
		c.Identifier = parts[2]
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		if amount, err := decimal.NewFromString(strings.TrimSpace(parts[3])); err == nil {
			c.Amount = &amount
		}
	}
	return c
}
