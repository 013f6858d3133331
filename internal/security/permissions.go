package security

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PermLogFile is for log files that may contain subprocess output.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermLogFile os.FileMode = 0640

	// PermLogDir is for the directory holding log files.
	// rwxr-x--- (0750): owner can read/write/execute, group can read/execute, others have no access.
	PermLogDir os.FileMode = 0750
)

// OpenLogFile opens path for appending, creating it and its parent directory
// if needed. A newly created file gets PermLogFile regardless of umask.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), PermLogDir); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	_, statErr := os.Stat(path)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, PermLogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if os.IsNotExist(statErr) {
		if err := os.Chmod(path, PermLogFile); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to set log file permissions: %w", err)
		}
	}

	return file, nil
}

// IsWorldReadable checks if a file is readable by others.
func IsWorldReadable(perm os.FileMode) bool {
	return perm&0004 != 0
}
