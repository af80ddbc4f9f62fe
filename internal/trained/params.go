// Package trained persists fitted operator state between pipeline runs.
//
// Each stateful node owns one Params map in the sidecar document. The
// _hash entry records the identity of the node configuration the state
// was fitted under; Resolve throws the state away the moment that
// configuration changes. Model blobs are stored as printable strings so
// the sidecar stays plain JSON.
package trained

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// HashKey is the reserved Params entry holding the configuration hash.
const HashKey = "_hash"

// Params is the persisted state of one operator. Values are JSON-shaped:
// strings, int64/float64 numbers, booleans, slices, and nested objects.
// Nested objects decode lazily as json.RawMessage so order-aware owners
// can unmarshal them themselves.
type Params map[string]any

func (p *Params) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Params, len(raw))
	for k, r := range raw {
		v, err := decodeValue(r)
		if err != nil {
			return fmt.Errorf("trained: decoding %q: %w", k, err)
		}
		out[k] = v
	}
	*p = out
	return nil
}

func decodeValue(r json.RawMessage) (any, error) {
	s := bytes.TrimSpace(r)
	if len(s) == 0 {
		return nil, nil
	}
	switch s[0] {
	case '{':
		return json.RawMessage(append([]byte(nil), s...)), nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(s, &elems); err != nil {
			return nil, err
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			v, err := decodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		dec := json.NewDecoder(bytes.NewReader(s))
		dec.UseNumber()
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if n, ok := tok.(json.Number); ok {
			return normalizeNumber(n), nil
		}
		return tok, nil
	}
}

// normalizeNumber keeps integral JSON numbers as int64 so hashes compare
// exactly after a round-trip.
func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// Sub returns the nested parameter set stored under key, decoding it when
// it arrived from JSON. nil means absent or not an object.
func (p Params) Sub(key string) Params {
	switch v := p[key].(type) {
	case Params:
		return v
	case map[string]any:
		return Params(v)
	case json.RawMessage:
		var sub Params
		if err := json.Unmarshal(v, &sub); err != nil {
			return nil
		}
		p[key] = sub
		return sub
	}
	return nil
}

// SetSub stores a nested parameter set under key.
func (p Params) SetSub(key string, sub Params) {
	p[key] = sub
}

// Model returns the encoded model blob stored under name.
func (p Params) Model(name string) (string, bool) {
	s, ok := p[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Resolve returns p when its stored hash matches cfg's hash, and a fresh
// parameter set carrying only the new hash otherwise. A nil p always
// resolves fresh.
func Resolve(p Params, cfg map[string]any) Params {
	h := Hash(cfg)
	if p != nil {
		if stored, ok := p.storedHash(); ok && stored == h {
			return p
		}
	}
	return Params{HashKey: h}
}

func (p Params) storedHash() (int64, bool) {
	switch v := p[HashKey].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}
