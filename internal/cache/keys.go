package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/dshills/dictpress/pkg/types"
)

// Key namespaces
const (
	SearchPrefix   = "s:"
	GlossaryPrefix = "g:"
)

// SearchKey fingerprints a search request. Types and tags are sorted so
// requests that differ only in filter order share a key.
func SearchKey(q types.SearchQuery) string {
	typs := slices.Clone(q.Types)
	slices.Sort(typs)
	tags := slices.Clone(q.Tags)
	slices.Sort(tags)

	return SearchPrefix + fingerprint(
		q.FromLang,
		q.ToLang,
		strings.ToLower(strings.TrimSpace(q.Query)),
		strings.Join(typs, ","),
		strings.Join(tags, ","),
		q.Status,
		strconv.Itoa(q.Page),
		strconv.Itoa(q.PerPage),
		strconv.Itoa(q.MaxRelations),
		strconv.Itoa(q.MaxContentItems),
	)
}

// GlossaryKey fingerprints a glossary page request
func GlossaryKey(lang, initial string, offset, limit int) string {
	return GlossaryPrefix + fingerprint(
		lang,
		initial,
		strconv.Itoa(offset),
		strconv.Itoa(limit),
	)
}

// fingerprint hashes fields separated by NUL bytes
func fingerprint(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
