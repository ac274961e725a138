package schema

import (
	"errors"
	"fmt"
)

// Errors returned while reading or writing record files.
//
// They are always wrapped with the offending path, so match them with
// errors.Is:
//
//	if errors.Is(err, schema.ErrInvalidRecordFile) {
//	    // the file has no id field
//	}
var (
	// ErrMalformedFile is returned when a file has no front matter
	// separator or its front matter is not a mapping.
	ErrMalformedFile = errors.New("malformed record file")

	// ErrMalformedMetadata is returned when the "meta" key is present
	// but does not hold a mapping.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrInvalidRecordFile is returned when a file cannot be turned into
	// a record, most commonly because it lacks an id field.
	ErrInvalidRecordFile = errors.New("invalid record file")

	// ErrDecode is returned when the structured text codec cannot parse
	// the front matter.
	ErrDecode = errors.New("front matter decode error")

	// ErrNotFound is returned by stores when a record id is unknown.
	ErrNotFound = errors.New("record not found")
)

// CorruptRecordError reports a stored record whose row could not be
// decoded. Stores return it from listings, joined with errors.Join, next to
// the records they could read, so one bad row does not hide the others.
type CorruptRecordError struct {
	ID  int64
	Err error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.ID, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}
