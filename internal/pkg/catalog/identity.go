package catalog

import (
	"strings"
	"unicode"

	"github.com/ManuelReschke/PriceSync/app/models"
)

// IDSeparator joins the slugged key components of a document id.
const IDSeparator = "__"

// Slugify lower-cases s and collapses every run of characters that are not
// letters or digits into a single "-".
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// DeriveID maps a row's semantic key to its document id. Rows that differ
// only in casing or punctuation share an id. Incomplete rows still get a
// deterministic id; validation is the caller's job.
func DeriveID(row models.PriceListRow) string {
	parts := []string{Slugify(row.Segment), Slugify(row.BillingCycle)}
	if row.IsFunnel() {
		parts = append(parts, Slugify(row.FunnelLevel), Slugify(row.LeadGenName))
	} else {
		parts = append(parts, Slugify(row.PlanName))
	}
	return strings.Join(parts, IDSeparator)
}

// groupKey is the (segment, billing cycle) partition reconciliation prunes within.
type groupKey struct {
	segment string
	cycle   string
}

func groupOf(row models.PriceListRow) groupKey {
	return groupKey{
		segment: strings.ToLower(strings.TrimSpace(row.Segment)),
		cycle:   strings.ToLower(strings.TrimSpace(row.BillingCycle)),
	}
}

// subKeyOf identifies a row inside its group.
func subKeyOf(row models.PriceListRow) string {
	if row.IsFunnel() {
		return Slugify(row.FunnelLevel) + "|" + Slugify(row.LeadGenName)
	}
	return Slugify(row.PlanName)
}
