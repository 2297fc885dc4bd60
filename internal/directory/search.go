package directory

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeText folds text for comparison (lowercase, no diacritics, spaces for dashes, trimmed).
func NormalizeText(s string) string {
	s = RemoveDiacritics(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Search filters the in-memory view by name or department.
// An empty query returns every record.
func (r *Repository) Search(query string) []UserRecord {
	q := NormalizeText(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]UserRecord, 0, len(r.records))
	for _, rec := range r.records {
		if q == "" ||
			strings.Contains(NormalizeText(rec.Name), q) ||
			strings.Contains(NormalizeText(rec.Department), q) {
			out = append(out, rec)
		}
	}
	return out
}
