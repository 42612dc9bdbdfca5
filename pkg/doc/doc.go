package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Field is a single key/value entry in a Builder.
type Field struct {
	Key   string
	Value interface{}
}

// Builder accumulates key/value fields in insertion order, including nested
// documents and duration values, and renders them as JSON or YAML.
// A Builder is not safe for concurrent use.
type Builder struct {
	fields []Field
}

// NewBuilder creates an empty document builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Append adds a key/value field.
func (b *Builder) Append(key string, value interface{}) *Builder {
	b.fields = append(b.fields, Field{Key: key, Value: value})
	return b
}

// Duration adds a duration field. Durations render in their human-readable
// form (e.g. "10ms") so diagnostic records stay legible in logs.
func (b *Builder) Duration(key string, d time.Duration) *Builder {
	return b.Append(key, d)
}

// Int adds an integer field.
func (b *Builder) Int(key string, v int64) *Builder {
	return b.Append(key, v)
}

// Bool adds a boolean field.
func (b *Builder) Bool(key string, v bool) *Builder {
	return b.Append(key, v)
}

// Object adds a nested document and returns its builder.
func (b *Builder) Object(key string) *Builder {
	child := NewBuilder()
	b.Append(key, child)
	return child
}

// Fields returns the accumulated fields in insertion order.
func (b *Builder) Fields() []Field {
	return b.fields
}

// Len returns the number of fields.
func (b *Builder) Len() int {
	return len(b.fields)
}

func normalize(v interface{}) interface{} {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}

// MarshalJSON renders the document as a JSON object preserving field order.
func (b *Builder) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range b.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(normalize(f.Value))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for %q: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML renders the document as a YAML mapping preserving field order.
func (b *Builder) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range b.fields {
		key := &yaml.Node{}
		key.SetString(f.Key)
		val := &yaml.Node{}
		if err := val.Encode(normalize(f.Value)); err != nil {
			return nil, fmt.Errorf("failed to encode value for %q: %w", f.Key, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// String renders the document as compact JSON, for use as a log field.
func (b *Builder) String() string {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Sprintf("<doc: %v>", err)
	}
	return string(data)
}
