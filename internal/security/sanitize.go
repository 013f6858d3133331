package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	keyPattern       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	ownerRepoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// ValidateKey ensures a mapping key is a plain word (letters, digits,
// underscore) so it can only ever match a single URL path segment.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("key %q contains invalid characters (only a-z, A-Z, 0-9, _ allowed)", key)
	}
	return nil
}

// ValidateNamespace ensures the route namespace is a single safe path segment.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if strings.HasPrefix(namespace, "-") {
		return fmt.Errorf("namespace cannot start with '-'")
	}
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("namespace %q contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)", namespace)
	}
	return nil
}

// ValidateOwnerRepo checks a GitHub "owner/repo" reference and splits it.
func ValidateOwnerRepo(ownerRepo string) (string, string, error) {
	if !ownerRepoPattern.MatchString(ownerRepo) {
		return "", "", fmt.Errorf("invalid owner/repo format: %q", ownerRepo)
	}
	parts := strings.SplitN(ownerRepo, "/", 2)
	if strings.HasPrefix(parts[0], ".") || strings.HasPrefix(parts[1], ".") {
		return "", "", fmt.Errorf("owner and repo cannot start with '.': %q", ownerRepo)
	}
	return parts[0], parts[1], nil
}
