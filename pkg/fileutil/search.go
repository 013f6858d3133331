package fileutil

import (
	"os"
	"path/filepath"
)

// SystemConfigDir holds the system-wide configuration file.
const SystemConfigDir = "/etc/autopull"

// SearchPaths returns the first of paths that exists, or "" if none does.
func SearchPaths(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DefaultConfigPaths returns standard config search paths for a given filename.
// Search order:
// 1. Current directory (./<filename>)
// 2. Config subdirectory (./config/<filename>)
// 3. System-wide config (/etc/autopull/<filename>)
func DefaultConfigPaths(filename string) []string {
	return []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
		filepath.Join(SystemConfigDir, filename),
	}
}

// FindConfig searches the default locations for filename.
// Returns "" when no file is found; a missing config file is not an error.
func FindConfig(filename string) string {
	return SearchPaths(DefaultConfigPaths(filename))
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
