// Package schema provides the record model and the on-disk file format
// used by filesync.
package schema

import (
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the layout used for the date and modified front matter keys.
const TimeLayout = "2006-01-02 15:04:05"

// Front matter keys owned by Record rather than Fields.
const (
	KeyID       = "id"
	KeyType     = "type"
	KeyTitle    = "title"
	KeyStatus   = "status"
	KeyDate     = "date"
	KeyModified = "modified"

	// KeyMeta holds the nested metadata mapping.
	KeyMeta = "meta"
	// KeyBody is reserved: the body lives after the separator, never in front matter.
	KeyBody = "body"
)

// Record is a single content item as held by the store.
type Record struct {
	// ===== Identity =====
	ID int64 // 0 means not yet persisted

	// ===== Classification =====
	Type   string // post, page, or any custom type
	Title  string // may be empty
	Status string // publish, draft, trash, ...

	// ===== Timestamps =====
	Date     time.Time
	Modified time.Time

	// ===== Content =====
	Fields   map[string]any    // remaining scalar attributes
	Body     string            // raw content after the separator
	Metadata map[string]string // stored under "meta" in the front matter
}

// FileRecord is the parsed on-disk projection of a Record.
type FileRecord struct {
	Path   string
	Fields map[string]any // front matter without "meta"
	Meta   map[string]string
	Body   string
}

// Filter narrows a record listing. The zero Filter selects every live record.
type Filter struct {
	// ID restricts the result to a single record.
	ID *int64
	// Type restricts the result to one record type (empty = all types).
	Type string
}

// Validate checks the reserved-key invariant and the fields a store needs.
func (r *Record) Validate() error {
	if err := CheckType(r.Type); err != nil {
		return err
	}
	for _, k := range []string{KeyBody, KeyMeta, KeyID, KeyType, KeyTitle, KeyStatus, KeyDate, KeyModified} {
		if _, ok := r.Fields[k]; ok {
			return fmt.Errorf("field %q is reserved", k)
		}
	}
	return nil
}

// SetDefaults applies default values for optional attributes.
func (r *Record) SetDefaults() {
	if r.Type == "" {
		r.Type = "post"
	}
	if r.Status == "" {
		r.Status = "publish"
	}
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	if r.Date.IsZero() {
		r.Date = time.Now().UTC().Truncate(time.Second)
	}
	if r.Modified.IsZero() {
		r.Modified = r.Date
	}
}

// Touch sets Modified to now, truncated to the front matter resolution.
func (r *Record) Touch(now time.Time) {
	r.Modified = now.UTC().Truncate(time.Second)
}

// FrontMatter returns the flat mapping written before the separator,
// without the body and without "meta".
func (r *Record) FrontMatter() map[string]any {
	fm := make(map[string]any, len(r.Fields)+6)
	for k, v := range r.Fields {
		fm[k] = v
	}
	fm[KeyID] = r.ID
	fm[KeyType] = r.Type
	fm[KeyTitle] = r.Title
	if r.Status != "" {
		fm[KeyStatus] = r.Status
	}
	if !r.Date.IsZero() {
		fm[KeyDate] = r.Date.Format(TimeLayout)
	}
	if !r.Modified.IsZero() {
		fm[KeyModified] = r.Modified.Format(TimeLayout)
	}
	return fm
}

// FromFile builds a Record from a parsed file.
//
// The id key must be present: it is the join key between the file and the
// store. A null, empty or zero id marks a record that has not been stored yet.
func FromFile(fr *FileRecord) (*Record, error) {
	rawID, ok := fr.Fields[KeyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing %q field", ErrInvalidRecordFile, fr.Path, KeyID)
	}
	id, err := toID(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecordFile, fr.Path, err)
	}

	r := &Record{
		ID:       id,
		Fields:   map[string]any{},
		Body:     fr.Body,
		Metadata: map[string]string{},
	}
	for k, v := range fr.Meta {
		r.Metadata[k] = v
	}

	for k, v := range fr.Fields {
		switch k {
		case KeyID, KeyBody:
		case KeyType:
			r.Type = toString(v)
		case KeyTitle:
			r.Title = toString(v)
		case KeyStatus:
			r.Status = toString(v)
		case KeyDate, KeyModified:
			t, err := parseTime(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %s: %v", ErrInvalidRecordFile, fr.Path, k, err)
			}
			if k == KeyDate {
				r.Date = t
			} else {
				r.Modified = t
			}
		default:
			r.Fields[k] = v
		}
	}
	if r.Type != "" {
		if err := CheckType(r.Type); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecordFile, fr.Path, err)
		}
	}
	return r, nil
}

func toID(v any) (int64, error) {
	switch id := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(id), nil
	case int64:
		return id, nil
	case uint64:
		return int64(id), nil
	case float64:
		if id != float64(int64(id)) {
			return 0, fmt.Errorf("id %v is not an integer", id)
		}
		return int64(id), nil
	case string:
		if id == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("id %q is not an integer", id)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("id has unsupported type %T", v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		if parsed, err := time.Parse(TimeLayout, t); err == nil {
			return parsed, nil
		}
		return time.Parse(time.RFC3339, t)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %v", v)
	}
}
