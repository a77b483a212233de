// Package fingerprint hashes catalog content so a refresh that loads the same entities does
// not publish a new index version.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/vine/pkg/models"
)

// EntityExclusions are bookkeeping fields that never change how an entity matches.
var EntityExclusions = map[string]bool{
	"updated_at": true,
}

// Entities fingerprints a catalog load. The result does not depend on the order the provider
// returned the entities in.
func Entities(entities []models.CanonicalEntity) (string, error) {
	sorted := make([]models.CanonicalEntity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	data, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	var generic []any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}

	var b strings.Builder
	canonicalize(&b, generic, EntityExclusions, "")
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize writes data as JSON with sorted keys, skipping excluded dot paths. Array
// elements share the path of their array.
func canonicalize(b *strings.Builder, data any, exclude map[string]bool, path string) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		first := true
		for _, k := range keys {
			fieldPath := k
			if path != "" {
				fieldPath = path + "." + k
			}
			if excluded(fieldPath, exclude) {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			b.Write(key)
			b.WriteByte(':')
			canonicalize(b, v[k], exclude, fieldPath)
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, e, exclude, path)
		}
		b.WriteByte(']')
	default:
		raw, _ := json.Marshal(v)
		b.Write(raw)
	}
}

// excluded matches a path exactly or by any excluded parent object.
func excluded(path string, exclude map[string]bool) bool {
	if exclude[path] {
		return true
	}
	for e := range exclude {
		if strings.HasPrefix(path, e+".") {
			return true
		}
	}
	return false
}
