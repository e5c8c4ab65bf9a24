package gitrepo

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/google/go-cmp/cmp"
)

// HasChanges reports whether any key in proposed differs from the same key in
// existing. Keys only present in existing are ignored. Values are compared
// after a JSON round trip so that an int parsed from YAML equals the float64
// decoded from a request body.
func HasChanges(existing, proposed map[string]any) bool {
	for key, value := range proposed {
		if !cmp.Equal(normalizeValue(existing[key]), normalizeValue(value)) {
			return true
		}
	}
	return false
}

// ChangedKeys lists the keys of proposed that differ from existing.
func ChangedKeys(existing, proposed map[string]any) []string {
	keys := make([]string, 0)
	for key, value := range proposed {
		if !cmp.Equal(normalizeValue(existing[key]), normalizeValue(value)) {
			keys = append(keys, key)
		}
	}
	return keys
}

func normalizeValue(value any) any {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return value
	}
	return parsed
}

// ContentID derives the stable identifier of a repository file from its
// path. It does not depend on file contents.
func ContentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return fmt.Sprintf("%x", sum)
}
