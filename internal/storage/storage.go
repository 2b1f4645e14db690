// Package storage persists the retrievable fields of indexed documents.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docsearch/internal/models"
)

// ErrNotFound is returned when a document id has no stored fields.
var ErrNotFound = errors.New("document not found")

// StoredFieldStore maps document ids to their path and stored fields.
// Generations read through it once the builder has sealed the store.
type StoredFieldStore interface {
	GetStoredFields(ctx context.Context, id uint32) (*models.StoredDocument, error)
	DocIDs(ctx context.Context) ([]uint32, error)
	Close() error
}
