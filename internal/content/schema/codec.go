package schema

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Separator is the line between the front matter and the body.
const Separator = "---"

// docStart is an optional document marker some YAML dumpers put before
// the front matter.
const docStart = Separator + "\n"

var separatorRE = regexp.MustCompile(`\r?\n---\r?\n`)

// Codec converts records to and from their file representation:
//
//	<front matter, keys sorted, with a nested "meta" mapping>
//	---
//	<body>
type Codec struct {
	text TextCodec
}

// NewCodec returns a Codec using the given front matter format.
func NewCodec(format string) (*Codec, error) {
	text, err := TextCodecFor(format)
	if err != nil {
		return nil, err
	}
	return &Codec{text: text}, nil
}

// DefaultCodec returns a YAML Codec.
func DefaultCodec() *Codec {
	return &Codec{text: YAMLCodec{}}
}

// Format returns the front matter format name.
func (c *Codec) Format() string {
	return c.text.Name()
}

// Serialize renders a record. The body is written verbatim.
func (c *Codec) Serialize(r *Record) ([]byte, error) {
	fm := r.FrontMatter()
	if len(r.Metadata) > 0 {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		fm[KeyMeta] = meta
	}

	header, err := c.text.Encode(fm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter for record %d: %w", r.ID, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(header) + len(Separator) + 1 + len(r.Body))
	buf.Write(header)
	buf.WriteString(Separator)
	buf.WriteByte('\n')
	buf.WriteString(r.Body)
	return buf.Bytes(), nil
}

// Parse splits data on the first separator line and decodes the front
// matter. The "meta" key is moved out of Fields into Meta.
func (c *Codec) Parse(path string, data []byte) (*FileRecord, error) {
	text := strings.TrimPrefix(string(data), docStart)

	loc := separatorRE.FindStringIndex(text)
	if loc == nil {
		return nil, fmt.Errorf("%w: %s: no %q separator line", ErrMalformedFile, path, Separator)
	}
	header, body := text[:loc[0]+1], text[loc[1]:]

	decoded, err := c.text.Decode([]byte(header))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fields, ok := asMapping(decoded)
	if !ok {
		return nil, fmt.Errorf("%w: %s: front matter is not a mapping", ErrMalformedFile, path)
	}
	delete(fields, KeyBody)

	meta := map[string]string{}
	if raw, ok := fields[KeyMeta]; ok {
		delete(fields, KeyMeta)
		m, ok := asMapping(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %q is a %T, not a mapping", ErrMalformedMetadata, path, KeyMeta, raw)
		}
		for k, v := range m {
			s, err := metaString(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %s.%s: %v", ErrMalformedMetadata, path, KeyMeta, k, err)
			}
			meta[k] = s
		}
	}

	return &FileRecord{
		Path:   path,
		Fields: fields,
		Meta:   meta,
		Body:   body,
	}, nil
}

// ReadFile reads and parses the record file at path.
func (c *Codec) ReadFile(path string) (*FileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file %s: %w", path, err)
	}
	return c.Parse(path, data)
}

// ReadRecord reads a file and converts it into a Record.
func (c *Codec) ReadRecord(path string) (*Record, error) {
	fr, err := c.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromFile(fr)
}

func metaString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(s), nil
	default:
		return "", fmt.Errorf("value of type %T is not a scalar", v)
	}
}
