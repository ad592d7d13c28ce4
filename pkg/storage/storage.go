// Package storage defines the persistence contract for CVE documents.
package storage

import "context"

// Inserter persists one document per call.
//
// acknowledged reports whether the storage layer durably accepted the write;
// an unacknowledged write is not an error but must not be counted as
// inserted.
type Inserter interface {
	InsertOne(ctx context.Context, doc map[string]any) (acknowledged bool, err error)
}
