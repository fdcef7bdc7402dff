package css

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashURL returns the hex SHA-256 digest of a URL string. Digests name
// deduplicated asset custom properties, so they must be pure functions of
// their input.
func HashURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])
}

// assetVar is one deduplicated asset: the custom property name and its
// already-quoted data URL value.
type assetVar struct {
	name    string
	dataURL string
}

// assetRegistry maps final (post-redirect) asset URLs to generated custom
// properties. It belongs to a single Embed invocation; traversal order is
// insertion order so trailer output stays deterministic.
type assetRegistry struct {
	entries []assetVar
	index   map[string]int
}

func newAssetRegistry() *assetRegistry {
	return &assetRegistry{index: make(map[string]int)}
}

func (r *assetRegistry) lookup(finalURL string) (assetVar, bool) {
	if i, ok := r.index[finalURL]; ok {
		return r.entries[i], true
	}
	return assetVar{}, false
}

func (r *assetRegistry) insert(finalURL, name, dataURL string) {
	if _, ok := r.index[finalURL]; ok {
		return
	}
	r.index[finalURL] = len(r.entries)
	r.entries = append(r.entries, assetVar{name: name, dataURL: dataURL})
}
