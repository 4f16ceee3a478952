package docstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PriceSync/app/models"
)

// GormBackend is the privileged path. Every batch runs in a single
// transaction, so it either applies completely or not at all.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend wraps an open connection. Tables must already be migrated.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func (b *GormBackend) Name() string { return "privileged" }

func (b *GormBackend) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	var row models.CatalogDocument
	err := b.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docKey(collection, id), err)
	}
	return toDocument(row)
}

func (b *GormBackend) List(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	var rows []models.CatalogDocument
	if err := b.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("doc_id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := toDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (b *GormBackend) BatchWrite(ctx context.Context, ops []Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, op := range ops {
			if err := applyGormOp(tx, op); err != nil {
				return fmt.Errorf("op %d (%s %s): %w", i, op.Kind, docKey(op.Collection, op.ID), err)
			}
		}
		return nil
	})
}

func applyGormOp(tx *gorm.DB, op Op) error {
	if op.Kind == OpDelete {
		return tx.Where("collection = ? AND doc_id = ?", op.Collection, op.ID).
			Delete(&models.CatalogDocument{}).Error
	}

	var existing map[string]any
	if op.Merge {
		var row models.CatalogDocument
		err := tx.Where("collection = ? AND doc_id = ?", op.Collection, op.ID).
			First(&row).Error
		switch {
		case err == nil:
			existing = row.Data
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}
	}

	data, err := normalizeFields(mergeFields(existing, op))
	if err != nil {
		return err
	}
	doc := models.CatalogDocument{
		Collection: op.Collection,
		DocID:      op.ID,
		Data:       datatypes.JSONMap(data),
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "collection"},
			{Name: "doc_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"data",
			"updated_at",
		}),
	}).Create(&doc).Error
}

// toDocument normalizes the stored JSON; JSONMap scans numbers as
// json.Number, the other paths return float64.
func toDocument(row models.CatalogDocument) (*Document, error) {
	fields, err := normalizeFields(map[string]any(row.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", docKey(row.Collection, row.DocID), err)
	}
	return &Document{ID: row.DocID, Fields: fields}, nil
}
