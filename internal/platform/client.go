package platform

import "context"

// Upload carries the raw bytes of a destination file upload.
type Upload struct {
	Filename string
	Data     []byte
	MimeType string
	Size     int64
}

// Condition matches one field. Contains wins over Equals when both are set.
type Condition struct {
	Equals   any
	Contains string
}

// Where is a conjunction of per-field conditions.
type Where map[string]Condition

type Document struct {
	ID   string
	Data map[string]any
}

type FindResult struct {
	Docs      []Document
	TotalDocs int
}

// Client is the contract the content platform exposes to the migration:
// CRUD over named collections with per-locale localized fields and optional
// file uploads. The platform itself (schema validation, hooks, admin UI) is
// out of scope; this is the surface the importer writes through.
type Client interface {
	Create(ctx context.Context, collection, locale string, data map[string]any, file *Upload) (string, error)
	Update(ctx context.Context, collection, id, locale string, data map[string]any, file *Upload) error
	Find(ctx context.Context, collection, locale string, where Where, limit int) (*FindResult, error)
	FindByID(ctx context.Context, collection, id string) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
}
