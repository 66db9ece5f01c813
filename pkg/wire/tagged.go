// Package wire holds the tagged JSON encoding shared by the dashboard grammar and the
// gossip protocol messages: one flat object whose "type" field names the variant.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// TagField is the discriminant key on every tagged object.
const TagField = "type"

var ErrMissingTag = errors.New("missing type discriminant")

// MarshalTagged encodes v as a JSON object and prepends the discriminant.
// v must encode to an object; its own fields must not use the "type" key.
func MarshalTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("tagged value %q must encode to a JSON object", tag)
	}

	tagJSON, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tagJSON) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tagJSON)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 0 && rest[0] != '}' {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// Fields splits a tagged object into its discriminant and raw fields.
func Fields(data []byte) (string, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, err
	}
	if fields == nil {
		return "", nil, ErrMissingTag
	}
	raw, ok := fields[TagField]
	if !ok {
		return "", nil, ErrMissingTag
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", nil, fmt.Errorf("type discriminant must be a string: %w", err)
	}
	return tag, fields, nil
}

// Require reports the first listed field that is absent or null.
func Require(fields map[string]json.RawMessage, names ...string) error {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			return fmt.Errorf("missing field `%s`", name)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("field `%s` must not be null", name)
		}
	}
	return nil
}

// DecodeFields fills the struct v points to from the fields whose keys equal one
// of its json names exactly. Keys differing only in case are ignored, so the
// values decoded are the ones Require checked.
func DecodeFields(fields map[string]json.RawMessage, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a non-nil struct pointer, got %T", v)
	}

	rt := rv.Elem().Type()
	exact := make(map[string]json.RawMessage, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		if raw, ok := fields[name]; ok {
			exact[name] = raw
		}
	}

	body, err := json.Marshal(exact)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
