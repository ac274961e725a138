package schema

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// TextCodec encodes and decodes the front matter block.
//
// Encode must produce keys in sorted order so dumps diff cleanly, and its
// output must end with a newline.
type TextCodec interface {
	// Name is the value accepted by the front_matter setting.
	Name() string
	Encode(m map[string]any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Supported front matter formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// TextCodecFor returns the codec for a front matter format name.
// An empty name selects YAML.
func TextCodecFor(format string) (TextCodec, error) {
	switch strings.ToLower(format) {
	case "", FormatYAML, "yml":
		return YAMLCodec{}, nil
	case FormatTOML:
		return TOMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported front matter format %q (want %s or %s)", format, FormatYAML, FormatTOML)
	}
}

// YAMLCodec is the default front matter codec.
type YAMLCodec struct{}

// Name implements TextCodec.
func (YAMLCodec) Name() string { return FormatYAML }

// Encode implements TextCodec. yaml.v3 emits map keys in sorted order.
func (YAMLCodec) Encode(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements TextCodec.
func (YAMLCodec) Decode(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// TOMLCodec writes front matter as TOML, with metadata as a [meta] table.
type TOMLCodec struct{}

// Name implements TextCodec.
func (TOMLCodec) Name() string { return FormatTOML }

// Encode implements TextCodec. TOML has no null, so nil values are dropped.
func (TOMLCodec) Encode(m map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(m))
	for k, v := range m {
		if v != nil {
			clean[k] = v
		}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(clean); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}

// Decode implements TextCodec.
func (TOMLCodec) Decode(data []byte) (any, error) {
	var m map[string]any
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return m, nil
}

// asMapping normalizes the decoded front matter into a string keyed map.
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
