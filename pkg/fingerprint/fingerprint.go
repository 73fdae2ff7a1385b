// Package fingerprint produces deterministic content hashes for event
// payloads. Audit events are delivered at least once, so consumers dedupe
// on the fingerprint rather than the message offset.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Generate creates a deterministic fingerprint for a payload.
// The fingerprint is a SHA256 hash of the canonicalized JSON.
func Generate(data map[string]any) string {
	return GenerateWithExclusions(data, nil)
}

// GenerateWithExclusions creates a fingerprint excluding specified fields.
// The excludeFields set contains dot-notation paths (e.g. "updated_at",
// "contact.email"). Excluding volatile fields keeps the hash stable when a
// redelivered payload differs only in bookkeeping.
func GenerateWithExclusions(data map[string]any, excludeFields map[string]bool) string {
	canonical := canonicalize(data, excludeFields, "")

	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// GenerateFromJSON creates a fingerprint from raw JSON
func GenerateFromJSON(data json.RawMessage) (string, error) {
	return GenerateFromJSONWithExclusions(data, nil)
}

// GenerateFromJSONWithExclusions creates a fingerprint from raw JSON,
// excluding specified fields.
func GenerateFromJSONWithExclusions(data json.RawMessage, excludeFields map[string]bool) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	return GenerateWithExclusions(m, excludeFields), nil
}

// canonicalize builds a deterministic string representation: map keys are
// sorted, nesting is processed recursively, primitives use JSON encoding.
func canonicalize(data any, excludeFields map[string]bool, currentPath string) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v, excludeFields, currentPath)
	case []any:
		return canonicalizeArray(v, excludeFields, currentPath)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any, excludeFields map[string]bool, currentPath string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "{"
	first := true
	for _, k := range keys {
		fieldPath := k
		if currentPath != "" {
			fieldPath = currentPath + "." + k
		}

		if shouldExcludeField(fieldPath, excludeFields) {
			continue
		}

		if !first {
			result += ","
		}
		first = false
		keyJSON, _ := json.Marshal(k)
		result += string(keyJSON) + ":" + canonicalize(m[k], excludeFields, fieldPath)
	}
	result += "}"
	return result
}

func canonicalizeArray(arr []any, excludeFields map[string]bool, currentPath string) string {
	result := "["
	for i, v := range arr {
		if i > 0 {
			result += ","
		}
		// Array elements share the element path; individual indices cannot
		// be excluded.
		result += canonicalize(v, excludeFields, currentPath)
	}
	result += "]"
	return result
}

// shouldExcludeField checks if a field path should be excluded.
// Supports exact matches and prefix matches for nested objects.
func shouldExcludeField(fieldPath string, excludeFields map[string]bool) bool {
	if excludeFields == nil {
		return false
	}

	if excludeFields[fieldPath] {
		return true
	}

	for excluded := range excludeFields {
		if strings.HasPrefix(fieldPath, excluded+".") {
			return true
		}
	}

	return false
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}
