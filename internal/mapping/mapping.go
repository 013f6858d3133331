package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autopull/internal/security"
	"autopull/pkg/fileutil"
)

// Entry is one configured key to target pair.
type Entry struct {
	Key    string `yaml:"key" json:"key"`
	Target string `yaml:"target" json:"target"`
}

// String renders the entry in its command-line form.
func (e Entry) String() string {
	return e.Key + "=" + e.Target
}

// Target is an entry resolved for execution.
type Target struct {
	Key string
	// Path is the directory to pull or the script to run.
	Path string
	// Dir is the working directory for the process.
	Dir string
}

// Mapping is the ordered, immutable table of entries. A key may appear more
// than once; all of its targets run, in declaration order.
type Mapping struct {
	mode    Mode
	entries []Entry
}

// New validates entries for the given mode and builds a Mapping.
// Every target must already exist and be a directory (pull mode) or a regular
// file (script mode). Paths are made absolute.
func New(mode Mode, entries []Entry) (*Mapping, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	resolved := make([]Entry, 0, len(entries))
	var errs []string
	for _, entry := range entries {
		if err := security.ValidateKey(entry.Key); err != nil {
			errs = append(errs, fmt.Sprintf("  - Mapping '%s': %v", entry, err))
			continue
		}
		if entry.Target == "" {
			errs = append(errs, fmt.Sprintf("  - Mapping '%s': missing path", entry))
			continue
		}

		absPath, err := filepath.Abs(entry.Target)
		if err != nil {
			errs = append(errs, fmt.Sprintf("  - Mapping '%s': cannot resolve path: %v", entry, err))
			continue
		}

		if err := checkTarget(mode, absPath); err != nil {
			errs = append(errs, fmt.Sprintf("  - Mapping '%s': %v", entry, err))
			continue
		}

		resolved = append(resolved, Entry{Key: entry.Key, Target: absPath})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid mapping configuration:\n%s", strings.Join(errs, "\n"))
	}

	return &Mapping{mode: mode, entries: resolved}, nil
}

// Mode returns the execution mode the mapping was validated for.
func (m *Mapping) Mode() Mode {
	return m.mode
}

// Resolve returns every target mapped to key in declaration order. Each target
// is checked again, since it may have been removed after startup.
func (m *Mapping) Resolve(key string) ([]Target, error) {
	var targets []Target
	for _, entry := range m.entries {
		if entry.Key != key {
			continue
		}
		if err := checkTarget(m.mode, entry.Target); err != nil {
			return nil, err
		}
		targets = append(targets, m.target(entry))
	}

	if len(targets) == 0 {
		return nil, &UnknownKeyError{Key: key}
	}

	return targets, nil
}

// Has reports whether any entry uses key.
func (m *Mapping) Has(key string) bool {
	for _, entry := range m.entries {
		if entry.Key == key {
			return true
		}
	}
	return false
}

// Keys returns the distinct keys in first-declaration order.
func (m *Mapping) Keys() []string {
	seen := make(map[string]bool)
	keys := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		if !seen[entry.Key] {
			seen[entry.Key] = true
			keys = append(keys, entry.Key)
		}
	}
	return keys
}

// Entries returns a copy of the validated entries.
func (m *Mapping) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Count returns the number of entries.
func (m *Mapping) Count() int {
	return len(m.entries)
}

func (m *Mapping) target(entry Entry) Target {
	dir := entry.Target
	if m.mode == ModeScript {
		dir = filepath.Dir(entry.Target)
	}
	return Target{Key: entry.Key, Path: entry.Target, Dir: dir}
}

func checkTarget(mode Mode, path string) error {
	if mode == ModePull {
		if !fileutil.DirExists(path) {
			return &TargetMissingError{Path: path, Mode: mode}
		}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return &TargetMissingError{Path: path, Mode: mode}
	}
	return nil
}
