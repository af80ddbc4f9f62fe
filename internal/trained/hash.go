package trained

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// hashMask keeps hashes inside float64's exact-integer range so they
// survive JSON number round-trips unchanged.
const hashMask = 1<<53 - 1

const (
	canonSep = "\x1f"
	canonNil = "\x00"
)

// Hash digests a node configuration into the stable identity Resolve
// compares. Map keys hash order-insensitively, sequences keep their
// order, and integral floats hash like integers so a decode path that
// produces float64 cannot change a configuration's identity.
func Hash(v any) int64 {
	h := sha256.New()
	writeCanonical(h, v)
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) & hashMask)
}

func writeCanonical(w io.Writer, v any) {
	switch x := v.(type) {
	case nil:
		io.WriteString(w, canonNil)
	case string:
		io.WriteString(w, "s:"+x)
	case bool:
		if x {
			io.WriteString(w, "b:1")
		} else {
			io.WriteString(w, "b:0")
		}
	case int:
		writeCanonical(w, int64(x))
	case int32:
		writeCanonical(w, int64(x))
	case int64:
		fmt.Fprintf(w, "i:%d", x)
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			fmt.Fprintf(w, "i:%d", int64(x))
			return
		}
		fmt.Fprintf(w, "f:%g", x)
	case json.Number:
		writeCanonical(w, normalizeNumber(x))
	case []string:
		io.WriteString(w, "l:")
		for _, e := range x {
			writeCanonical(w, e)
			io.WriteString(w, canonSep)
		}
	case []any:
		io.WriteString(w, "l:")
		for _, e := range x {
			writeCanonical(w, e)
			io.WriteString(w, canonSep)
		}
	case map[string]any:
		writeCanonicalMap(w, x)
	case Params:
		writeCanonicalMap(w, x)
	default:
		fmt.Fprintf(w, "v:%v", x)
	}
}

func writeCanonicalMap(w io.Writer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	io.WriteString(w, "m:")
	for _, k := range keys {
		io.WriteString(w, k)
		io.WriteString(w, canonSep)
		writeCanonical(w, m[k])
		io.WriteString(w, canonSep)
	}
}
