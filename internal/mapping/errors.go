package mapping

import "fmt"

// UnknownKeyError is returned when no entry is mapped to the requested key.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("No mapping found for key: %s", e.Key)
}

// TargetMissingError is returned when a mapped path no longer exists or is
// not of the kind the mode expects.
type TargetMissingError struct {
	Path string
	Mode Mode
}

func (e *TargetMissingError) Error() string {
	if e.Mode == ModeScript {
		return fmt.Sprintf("File %s not found", e.Path)
	}
	return fmt.Sprintf("Path %s not found", e.Path)
}
