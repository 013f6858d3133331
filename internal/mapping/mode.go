package mapping

import "fmt"

// Mode selects how every target of the process is executed.
type Mode string

const (
	// ModePull runs a version-control pull inside a directory target and
	// returns its output.
	ModePull Mode = "pull"

	// ModeScript launches a script target in the background and returns
	// immediately.
	ModeScript Mode = "script"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePull, ModeScript:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q (must be %q or %q)", s, ModePull, ModeScript)
	}
}

// DefaultNamespace is the first URL path segment used when none is configured.
func (m Mode) DefaultNamespace() string {
	if m == ModeScript {
		return "ghhooks"
	}
	return "autopull"
}

// TargetKind describes what a target path must be for this mode.
func (m Mode) TargetKind() string {
	if m == ModeScript {
		return "file"
	}
	return "directory"
}
