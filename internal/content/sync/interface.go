package sync

import (
	"context"

	"github.com/clarive/filesync/internal/content/schema"
)

// Store is the record database the syncer reads from and writes to.
//
// The syncer never deletes through a Store: records only disappear when the
// owning application trashes them.
type Store interface {
	// ListRecords returns the live records matching f, newest first.
	// Trashed records and revisions are never returned.
	// Records that cannot be decoded may be reported as
	// *schema.CorruptRecordError values (joined with errors.Join) next to
	// the records that were read; any other error fails the whole listing.
	ListRecords(ctx context.Context, f schema.Filter) ([]*schema.Record, error)

	// GetRecord returns a single record. An unknown id yields an error
	// matching schema.ErrNotFound.
	GetRecord(ctx context.Context, id int64) (*schema.Record, error)

	// GetMetadata returns metadata keyed by record id. A nil id returns
	// the metadata of every record.
	GetMetadata(ctx context.Context, id *int64) (map[int64]map[string]string, error)

	// InsertRecord stores a new record and returns the id it was given.
	// r.ID is ignored.
	InsertRecord(ctx context.Context, r *schema.Record) (int64, error)

	// UpdateRecord overwrites the stored record with the same id.
	UpdateRecord(ctx context.Context, r *schema.Record) error

	// SetMetadata creates or replaces one metadata value. Keys absent from
	// a loaded file are left untouched.
	SetMetadata(ctx context.Context, id int64, key, value string) error
}
