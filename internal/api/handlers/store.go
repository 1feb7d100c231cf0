package handlers

import (
	"context"

	"github.com/randytsao24/trafficintel/internal/store"
)

// DocumentStore is the part of the document store used by resource handlers.
type DocumentStore interface {
	CreateDocument(ctx context.Context, collection string, doc store.Document) (string, error)
	GetDocuments(ctx context.Context, collection string, filter store.Filter, limit int) ([]store.Document, error)
}

// DatabaseProbe is the part of the document store used by diagnostics.
type DatabaseProbe interface {
	ListCollections(ctx context.Context) ([]string, error)
}
