package library

import "context"

//go:generate mockgen -source=catalog.go -destination=mocks/mock_catalog.go -package=mocks

// WriteResult is the outcome of a successful write. LastInsertID is only
// meaningful after an INSERT.
type WriteResult struct {
	LastInsertID int64
	RowsAffected int64
}

// Catalog is the storage surface the lending rules are written against.
// Errors match ErrIntegrityViolation or ErrStorageFailure.
type Catalog interface {
	Exec(ctx context.Context, query string, args []any) (WriteResult, error)
	FetchAll(ctx context.Context, query string, args []any) ([]Row, error)
}
