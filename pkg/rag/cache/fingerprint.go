package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"docchat-be/pkg/store"
)

// NormalizeQuery lowercases and collapses whitespace.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Fingerprint derives the cache key from the normalized query, the document
// scope (order and duplicates ignored, empty means open scope) and the focus
// anchor.
func Fingerprint(query string, documents []string, focus *store.FocusContext) string {
	scope := normalizeScope(documents)

	anchor := "-"
	if focus != nil {
		anchor = fmt.Sprintf("%s:%d:%d", focus.DocumentID, focus.StartChar, focus.EndChar)
	}

	q := NormalizeQuery(query)
	scopeKey := strings.Join(scope, ",")
	if len(scope) == 0 {
		scopeKey = "*"
	}

	// length prefixes keep field boundaries unambiguous
	raw := fmt.Sprintf("%d:%s|%d:%s|%s", len(q), q, len(scopeKey), scopeKey, anchor)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeScope(documents []string) []string {
	seen := make(map[string]struct{}, len(documents))
	out := make([]string, 0, len(documents))
	for _, d := range documents {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
