package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives a stable content key from parts. Parts are JSON-encoded, so
// maps hash identically regardless of insertion order.
func Key(namespace string, parts ...any) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			fmt.Fprintf(h, "%v\n", p)
		}
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
