package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autopull/internal/mapping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, mapping.ModePull, cfg.Mode)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8011, cfg.Port)
	assert.Equal(t, []string{"git", "pull"}, cfg.PullCommand)
	assert.Equal(t, []string{"bash"}, cfg.Interpreter)
	assert.Equal(t, 5*time.Minute, cfg.PullTimeout)
	assert.Zero(t, cfg.RateLimit)
	assert.False(t, cfg.SerializePulls)
	assert.Equal(t, "autopull", cfg.EffectiveNamespace())
}

func TestEffectiveNamespace(t *testing.T) {
	cfg := Default()
	cfg.Mode = mapping.ModeScript
	assert.Equal(t, "ghhooks", cfg.EffectiveNamespace())

	cfg.Namespace = "hooks"
	assert.Equal(t, "hooks", cfg.EffectiveNamespace())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
mode: script
namespace: deploys
host: 127.0.0.1
port: 9000
secret: s3cr3t
interpreter: [sh, -e]
pull_command: git pull --ff-only
pull_timeout: 2m
rate_limit: 30
serialize_pulls: true
mappings:
  - site=/srv/site/deploy.sh
  - key: site
    target: /srv/assets/deploy.sh
  - "other:/srv/other.sh"
`)

	fc, err := LoadFile(path)
	require.NoError(t, err)

	cfg := Default()
	require.NoError(t, cfg.ApplyFile(fc))

	assert.Equal(t, mapping.ModeScript, cfg.Mode)
	assert.Equal(t, "deploys", cfg.Namespace)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "s3cr3t", cfg.Secret)
	assert.Equal(t, []string{"sh", "-e"}, cfg.Interpreter)
	assert.Equal(t, []string{"git", "pull", "--ff-only"}, cfg.PullCommand)
	assert.Equal(t, 2*time.Minute, cfg.PullTimeout)
	assert.Equal(t, 30, cfg.RateLimit)
	assert.True(t, cfg.SerializePulls)
	assert.Equal(t, []mapping.Entry{
		{Key: "site", Target: "/srv/site/deploy.sh"},
		{Key: "site", Target: "/srv/assets/deploy.sh"},
		{Key: "other", Target: "/srv/other.sh"},
	}, cfg.Mappings)
}

func TestLoadFile_Empty(t *testing.T) {
	fc, err := LoadFile(writeFile(t, ""))
	require.NoError(t, err)

	cfg := Default()
	require.NoError(t, cfg.ApplyFile(fc))
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "mode: pull\nbranch: main\n"},
		{"malformed mapping", "mappings:\n  - no-separator\n"},
		{"invalid key", "mappings:\n  - bad-key=/srv\n"},
		{"incomplete object", "mappings:\n  - key: site\n"},
		{"list mapping", "mappings:\n  - [a, b]\n"},
		{"not yaml", "mode: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyFile_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		fc   FileConfig
	}{
		{"mode", FileConfig{Mode: "fetch"}},
		{"pull command", FileConfig{PullCommand: ""}},
		{"interpreter", FileConfig{Interpreter: 42}},
		{"timeout", FileConfig{PullTimeout: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Default().ApplyFile(&tt.fc))
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.Mappings = []mapping.Entry{{Key: "first", Target: "/srv/first"}}

	err := cfg.ApplyEnv(envFrom(map[string]string{
		"AUTOPULL_MODE":            "script",
		"AUTOPULL_NAMESPACE":       "hooks",
		"AUTOPULL_HOST":            "127.0.0.1",
		"AUTOPULL_PORT":            "9100",
		"AUTOPULL_SECRET":          "from-env",
		"AUTOPULL_PULL_COMMAND":    "git pull --rebase",
		"AUTOPULL_INTERPRETER":     "sh",
		"AUTOPULL_PULL_TIMEOUT":    "45",
		"AUTOPULL_RATE_LIMIT":      "10",
		"AUTOPULL_SERIALIZE_PULLS": "true",
		"AUTOPULL_MAPPINGS":        "a=/srv/a, b:/srv/b",
		"UNRELATED":                "ignored",
	}))
	require.NoError(t, err)

	assert.Equal(t, mapping.ModeScript, cfg.Mode)
	assert.Equal(t, "hooks", cfg.Namespace)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "from-env", cfg.Secret)
	assert.Equal(t, []string{"git", "pull", "--rebase"}, cfg.PullCommand)
	assert.Equal(t, []string{"sh"}, cfg.Interpreter)
	assert.Equal(t, 45*time.Second, cfg.PullTimeout)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.True(t, cfg.SerializePulls)
	assert.Equal(t, []mapping.Entry{
		{Key: "first", Target: "/srv/first"},
		{Key: "a", Target: "/srv/a"},
		{Key: "b", Target: "/srv/b"},
	}, cfg.Mappings)
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envFrom(map[string]string{"AUTOPULL_PORT": ""})))
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestApplyEnv_Errors(t *testing.T) {
	for _, vars := range []map[string]string{
		{"AUTOPULL_MODE": "fetch"},
		{"AUTOPULL_PORT": "eighty"},
		{"AUTOPULL_PULL_TIMEOUT": "later"},
		{"AUTOPULL_RATE_LIMIT": "lots"},
		{"AUTOPULL_SERIALIZE_PULLS": "maybe"},
		{"AUTOPULL_PULL_COMMAND": "git 'pull"},
		{"AUTOPULL_MAPPINGS": "broken"},
	} {
		assert.Error(t, Default().ApplyEnv(envFrom(vars)), "vars: %v", vars)
	}
}

func TestParseTimeout(t *testing.T) {
	d, err := ParseTimeout("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseTimeout("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseTimeout("ninety")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("no mappings", func(t *testing.T) {
		err := Default().Validate()
		assert.True(t, errors.Is(err, ErrNoMappings))
	})

	t.Run("valid", func(t *testing.T) {
		cfg := Default()
		cfg.Mappings = []mapping.Entry{{Key: "a", Target: "/srv/a"}}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid fields are reported together", func(t *testing.T) {
		cfg := Default()
		cfg.Mappings = []mapping.Entry{{Key: "a", Target: "/srv/a"}}
		cfg.Port = 70000
		cfg.Namespace = "bad/namespace"
		cfg.PullTimeout = 0
		cfg.RateLimit = -1

		err := cfg.Validate()
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoMappings))
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "namespace")
		assert.Contains(t, err.Error(), "pull_timeout")
		assert.Contains(t, err.Error(), "rate_limit")
	})
}

func TestValidate_ReservedNamespace(t *testing.T) {
	cfg := Default()
	cfg.Mappings = []mapping.Entry{{Key: "a", Target: "/srv/a"}}
	cfg.Namespace = "status"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in endpoint")
}

func TestBuildMapping(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Mappings = []mapping.Entry{{Key: "site", Target: dir}}
	m, err := cfg.BuildMapping()
	require.NoError(t, err)
	assert.Equal(t, []string{"site"}, m.Keys())

	cfg.Mode = mapping.ModeScript
	_, err = cfg.BuildMapping()
	assert.Error(t, err, "a directory is not a valid script target")
}

func TestRunnerOptions(t *testing.T) {
	cfg := Default()
	cfg.SerializePulls = true
	cfg.PullTimeout = time.Minute

	opts := cfg.RunnerOptions()
	assert.Equal(t, cfg.PullCommand, opts.PullCommand)
	assert.Equal(t, cfg.Interpreter, opts.Interpreter)
	assert.Equal(t, time.Minute, opts.PullTimeout)
	assert.True(t, opts.SerializePulls)
}

func TestSecretWarning(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.SecretWarning(), "no secret")

	cfg.Secret = "changeme"
	assert.Contains(t, cfg.SecretWarning(), "weak secret")

	cfg.Secret = "Xk9#mP2$vL5@nQ8&wR3!jT6*hY4^cF7%"
	assert.Empty(t, cfg.SecretWarning())
}
