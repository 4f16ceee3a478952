package models

import (
	"strings"
	"time"
)

const (
	CatalogCollection     = "price_list"
	CatalogMetaCollection = "catalog_meta"
	CatalogMetaID         = "price_list"
)

// CatalogMeta tracks the last reconciliation of the price list. It is only
// used for freshness reporting.
type CatalogMeta struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Count     int       `json:"count"`
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
