// Package config assembles the server configuration from built-in defaults,
// an optional YAML file, AUTOPULL_* environment variables and command-line
// flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"autopull/internal/mapping"
	"autopull/internal/runner"
	"autopull/internal/security"
	"autopull/pkg/cmdutil"
)

const (
	// FileName is the config file looked up in the default search paths.
	FileName = "autopull.yaml"

	// EnvPrefix prefixes every environment variable read by ApplyEnv.
	EnvPrefix = "AUTOPULL_"

	DefaultHost = "0.0.0.0"
	DefaultPort = 8011
)

// reservedNamespaces are first path segments taken by other routes.
var reservedNamespaces = map[string]bool{
	"health": true,
	"status": true,
}

// ErrNoMappings is returned by Validate when no key is mapped.
var ErrNoMappings = errors.New("no mappings configured")

// Config is the effective server configuration.
type Config struct {
	Mode      mapping.Mode
	Namespace string
	Host      string
	Port      int

	// Secret is the shared HMAC key. Empty disables signature checks.
	Secret string

	PullCommand    []string
	Interpreter    []string
	PullTimeout    time.Duration
	SerializePulls bool

	// RateLimit is the number of hook requests per minute allowed per client
	// address. Zero disables rate limiting.
	RateLimit int

	Mappings []mapping.Entry

	// Source is the config file that was applied, if any.
	Source string
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Mode:        mapping.ModePull,
		Host:        DefaultHost,
		Port:        DefaultPort,
		PullCommand: append([]string(nil), runner.DefaultPullCommand...),
		Interpreter: []string{runner.DefaultInterpreter},
		PullTimeout: runner.DefaultPullTimeout,
	}
}

// ApplyEnv overrides fields from AUTOPULL_* variables found through lookup.
// AUTOPULL_MAPPINGS holds entries separated by commas or whitespace; they are
// appended to the mappings already present.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get("MODE"); ok {
		mode, err := mapping.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%sMODE: %w", EnvPrefix, err)
		}
		c.Mode = mode
	}
	if v, ok := get("NAMESPACE"); ok {
		c.Namespace = v
	}
	if v, ok := get("HOST"); ok {
		c.Host = v
	}
	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: invalid port %q", EnvPrefix, v)
		}
		c.Port = port
	}
	if v, ok := get("SECRET"); ok {
		c.Secret = v
	}
	if v, ok := get("PULL_COMMAND"); ok {
		parts, err := cmdutil.ParseCommandString(v)
		if err != nil {
			return fmt.Errorf("%sPULL_COMMAND: %w", EnvPrefix, err)
		}
		c.PullCommand = parts
	}
	if v, ok := get("INTERPRETER"); ok {
		parts, err := cmdutil.ParseCommandString(v)
		if err != nil {
			return fmt.Errorf("%sINTERPRETER: %w", EnvPrefix, err)
		}
		c.Interpreter = parts
	}
	if v, ok := get("PULL_TIMEOUT"); ok {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("%sPULL_TIMEOUT: %w", EnvPrefix, err)
		}
		c.PullTimeout = d
	}
	if v, ok := get("RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: invalid number %q", EnvPrefix, v)
		}
		c.RateLimit = n
	}
	if v, ok := get("SERIALIZE_PULLS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSERIALIZE_PULLS: invalid boolean %q", EnvPrefix, v)
		}
		c.SerializePulls = b
	}
	if v, ok := get("MAPPINGS"); ok {
		fields := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t'
		})
		entries, err := mapping.ParseEntries(fields)
		if err != nil {
			return fmt.Errorf("%sMAPPINGS: %w", EnvPrefix, err)
		}
		c.Mappings = append(c.Mappings, entries...)
	}

	return nil
}

// ParseTimeout accepts a Go duration ("90s", "5m") or a plain number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}

// EffectiveNamespace returns the configured namespace or the mode default.
func (c *Config) EffectiveNamespace() string {
	if c.Namespace != "" {
		return c.Namespace
	}
	return c.Mode.DefaultNamespace()
}

// Validate checks the settings that do not touch the filesystem.
// It returns ErrNoMappings when the mapping list is empty.
func (c *Config) Validate() error {
	var errs []string

	if _, err := mapping.ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, fmt.Sprintf("  - %v", err))
	}
	if err := security.ValidateNamespace(c.EffectiveNamespace()); err != nil {
		errs = append(errs, fmt.Sprintf("  - namespace: %v", err))
	} else if reservedNamespaces[c.EffectiveNamespace()] {
		errs = append(errs, fmt.Sprintf("  - namespace: %q is used by a built-in endpoint", c.EffectiveNamespace()))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("  - port: %d out of range (1-65535)", c.Port))
	}
	if len(c.PullCommand) == 0 {
		errs = append(errs, "  - pull_command: must not be empty")
	}
	if len(c.Interpreter) == 0 {
		errs = append(errs, "  - interpreter: must not be empty")
	}
	if c.PullTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("  - pull_timeout: must be positive, got %s", c.PullTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("  - rate_limit: must not be negative, got %d", c.RateLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
	}

	if len(c.Mappings) == 0 {
		return ErrNoMappings
	}

	return nil
}

// BuildMapping validates every entry against the filesystem for the
// configured mode.
func (c *Config) BuildMapping() (*mapping.Mapping, error) {
	return mapping.New(c.Mode, c.Mappings)
}

// RunnerOptions returns the executor settings.
func (c *Config) RunnerOptions() runner.Options {
	return runner.Options{
		PullCommand:    c.PullCommand,
		Interpreter:    c.Interpreter,
		PullTimeout:    c.PullTimeout,
		SerializePulls: c.SerializePulls,
	}
}

// SecretWarning returns a human readable warning when the secret is weak,
// or "" if it is acceptable. An empty secret yields its own warning.
func (c *Config) SecretWarning() string {
	if c.Secret == "" {
		return "no secret configured; webhook signatures will not be checked"
	}
	if err := security.ValidateSecret(c.Secret); err != nil {
		return fmt.Sprintf("weak secret: %v", err)
	}
	return ""
}
