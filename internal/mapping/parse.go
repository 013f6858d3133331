package mapping

import (
	"fmt"
	"strings"

	"autopull/internal/security"
)

// ParseEntry parses a "key=target" or "key:target" mapping.
// The key may not contain either separator, so the first one found splits the
// entry and the target keeps any later '=' or ':' characters.
func ParseEntry(s string) (Entry, error) {
	i := strings.IndexAny(s, "=:")
	if i < 0 {
		return Entry{}, fmt.Errorf("invalid mapping %q (format key=path or key:path)", s)
	}

	entry := Entry{
		Key:    strings.TrimSpace(s[:i]),
		Target: strings.TrimSpace(s[i+1:]),
	}
	if err := security.ValidateKey(entry.Key); err != nil {
		return Entry{}, fmt.Errorf("invalid mapping %q: %w", s, err)
	}
	if entry.Target == "" {
		return Entry{}, fmt.Errorf("invalid mapping %q: missing path", s)
	}

	return entry, nil
}

// ParseEntries parses every mapping and reports all malformed ones at once.
func ParseEntries(values []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(values))
	var errs []string
	for _, v := range values {
		entry, err := ParseEntry(v)
		if err != nil {
			errs = append(errs, "  - "+err.Error())
			continue
		}
		entries = append(entries, entry)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid mappings:\n%s", strings.Join(errs, "\n"))
	}
	return entries, nil
}
