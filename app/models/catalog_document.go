package models

import (
	"time"

	"gorm.io/datatypes"
)

// CatalogDocument is the relational rendition of a schemaless document. The
// privileged store keeps every collection in this one table.
type CatalogDocument struct {
	Collection string            `gorm:"type:varchar(64);primaryKey" json:"collection"`
	DocID      string            `gorm:"column:doc_id;type:varchar(191);primaryKey" json:"doc_id"`
	Data       datatypes.JSONMap `json:"data"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CatalogDocument) TableName() string {
	return "catalog_documents"
}
