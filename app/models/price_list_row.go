package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	SegmentPersonal    = "Personal"
	SegmentBusiness    = "Business"
	SegmentFunnelLevel = "Funnel Level"
)

const (
	BillingCycleMonthly = "Monthly"
	BillingCycleYearly  = "Yearly"
)

// PriceListRow is a single entry of the pricing catalog. Funnel Level rows are
// keyed by FunnelLevel and LeadGenName, every other segment by PlanName.
type PriceListRow struct {
	Segment      string           `json:"segment" validate:"required,max=64"`
	BillingCycle string           `json:"billingCycle" validate:"required,max=32"`
	PlanName     string           `json:"planName,omitempty" validate:"max=64"`
	FunnelLevel  string           `json:"funnelLevel,omitempty" validate:"max=64"`
	LeadGenName  string           `json:"leadGenName,omitempty" validate:"max=64"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	MinimumPrice *decimal.Decimal `json:"minimumPrice,omitempty"`
	UpdatedAt    *time.Time       `json:"updatedAt,omitempty"`
}

// IsFunnel reports whether the row belongs to the Funnel Level segment.
func (r *PriceListRow) IsFunnel() bool {
	return IsFunnelSegment(r.Segment)
}

func (r *PriceListRow) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// IsFunnelSegment compares case-insensitively because snapshots are produced by hand.
func IsFunnelSegment(segment string) bool {
	return equalFold(segment, SegmentFunnelLevel)
}
