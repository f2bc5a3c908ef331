package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Field is a single key/value pair of a MessageContext.
type Field struct {
	Key   string
	Value any
}

// MessageContext is an ordered set of key/value pairs that enriches a message.
// A nil MessageContext is empty. Transports may copy it but must not modify it.
type MessageContext []Field

// ContextOf builds a MessageContext from alternating keys and values.
// Non-string keys are formatted with fmt.Sprint; a trailing key without a value gets nil.
func ContextOf(kv ...any) MessageContext {
	mctx := make(MessageContext, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		var value any
		if i+1 < len(kv) {
			value = kv[i+1]
		}
		mctx = append(mctx, Field{Key: key, Value: value})
	}
	return mctx.normalize()
}

// ContextFromMap builds a MessageContext from a map. Keys are sorted so the order is stable.
func ContextFromMap(m map[string]any) MessageContext {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	mctx := make(MessageContext, 0, len(keys))
	for _, k := range keys {
		mctx = append(mctx, Field{Key: k, Value: m[k]})
	}
	return mctx.normalize()
}

// normalize drops blank keys and collapses duplicates: a repeated key keeps its
// first position and its last value. The receiver is never modified.
func (c MessageContext) normalize() MessageContext {
	if len(c) == 0 {
		return nil
	}
	out := make(MessageContext, 0, len(c))
	index := make(map[string]int, len(c))
	for _, f := range c {
		if strings.TrimSpace(f.Key) == "" {
			continue
		}
		if i, ok := index[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		index[f.Key] = len(out)
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Clone returns a copy that can be modified freely.
func (c MessageContext) Clone() MessageContext {
	if c == nil {
		return nil
	}
	return append(MessageContext(nil), c...)
}

// Get returns the value stored under key.
func (c MessageContext) Get(key string) (any, bool) {
	for _, f := range c {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Map returns the context as a new map.
func (c MessageContext) Map() map[string]any {
	m := make(map[string]any, len(c))
	for _, f := range c {
		m[f.Key] = f.Value
	}
	return m
}

// Strings returns the context as a new map with every value stringified.
func (c MessageContext) Strings() map[string]string {
	m := make(map[string]string, len(c))
	for _, f := range c {
		m[f.Key] = Stringify(f.Value)
	}
	return m
}

// Compact renders the context as "k1=v1, k2=v2".
func (c MessageContext) Compact() string {
	parts := make([]string, 0, len(c))
	for _, f := range c {
		parts = append(parts, f.Key+"="+Stringify(f.Value))
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes the context as a JSON object in insertion order.
// Values that cannot be encoded are written as their string form.
func (c MessageContext) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, fmt.Errorf("encoding context key %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(f.Value)
		if err != nil {
			value, _ = json.Marshal(Stringify(f.Value))
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document.
func (c *MessageContext) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding message context: %w", err)
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decoding message context: expected object, got %v", tok)
	}

	var out MessageContext
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding message context key: %w", err)
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding message context value for %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding message context: %w", err)
	}

	*c = out.normalize()
	return nil
}

// Stringify renders a context value for text channels and templates.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	case map[string]any, []any:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
