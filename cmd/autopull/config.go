package main

import (
	"fmt"
	"os"

	"autopull/internal/config"
	"autopull/internal/mapping"
	"autopull/internal/security"
	"autopull/pkg/cmdutil"
	"autopull/pkg/fileutil"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Global configuration flags, shared by every command that loads config.
var (
	configFile     string
	envFile        string
	mappingFlags   []string
	modeFlag       string
	namespaceFlag  string
	hostFlag       string
	portFlag       int
	secretFlag     string
	pullCommand    string
	interpreter    string
	pullTimeout    string
	rateLimit      int
	serializePulls bool
	logFile        string
	logLevel       string
)

func registerConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()

	f.StringVarP(&configFile, "config", "c", getEnvOrDefault("AUTOPULL_CONFIG", ""), "Path to autopull.yaml configuration file")
	f.StringVar(&envFile, "env-file", "", "Load AUTOPULL_* variables from a dotenv file")
	f.StringArrayVarP(&mappingFlags, "add", "a", nil, "Mapping key=path or key:path (repeatable)")
	f.StringVar(&modeFlag, "mode", string(mapping.ModePull), "Execution mode: pull or script")
	f.StringVar(&namespaceFlag, "namespace", "", "First URL path segment (default autopull in pull mode, ghhooks in script mode)")
	f.StringVar(&hostFlag, "host", config.DefaultHost, "Host to bind to")
	f.IntVarP(&portFlag, "port", "p", config.DefaultPort, "Port to listen on")
	f.StringVar(&secretFlag, "secret", "", "Shared webhook secret (empty disables signature checks)")
	f.StringVar(&pullCommand, "pull-command", "git pull", "Command run in each directory in pull mode")
	f.StringVar(&interpreter, "interpreter", "bash", "Interpreter used to run scripts in script mode")
	f.StringVar(&pullTimeout, "pull-timeout", "5m", "Timeout for each pull (duration or seconds)")
	f.IntVar(&rateLimit, "rate-limit", 0, "Hook requests per minute per client address (0 disables)")
	f.BoolVar(&serializePulls, "serialize-pulls", false, "Never run two pulls in the same directory at once")
	f.StringVar(&logFile, "log", getEnvOrDefault("AUTOPULL_LOG_FILE", ""), "Also write logs to this file")
	f.StringVar(&logLevel, "log-level", getEnvOrDefault("AUTOPULL_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
}

// loadConfig builds the configuration from defaults, the config file, the
// environment and explicitly set flags. The returned config is always
// non-nil when the error is config.ErrNoMappings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := config.Default()

	path := configFile
	if path == "" && len(mappingFlags) == 0 {
		path = fileutil.FindConfig(config.FileName)
	}
	if path != "" {
		fc, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyFile(fc); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		cfg.Source = path
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) error {
	if f.Changed("mode") {
		mode, err := mapping.ParseMode(modeFlag)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if f.Changed("namespace") {
		cfg.Namespace = namespaceFlag
	}
	if f.Changed("host") {
		cfg.Host = hostFlag
	}
	if f.Changed("port") {
		cfg.Port = portFlag
	}
	if f.Changed("secret") {
		cfg.Secret = secretFlag
	}
	if f.Changed("pull-command") {
		parts, err := cmdutil.ParseCommandString(pullCommand)
		if err != nil {
			return fmt.Errorf("--pull-command: %w", err)
		}
		cfg.PullCommand = parts
	}
	if f.Changed("interpreter") {
		parts, err := cmdutil.ParseCommandString(interpreter)
		if err != nil {
			return fmt.Errorf("--interpreter: %w", err)
		}
		cfg.Interpreter = parts
	}
	if f.Changed("pull-timeout") {
		d, err := config.ParseTimeout(pullTimeout)
		if err != nil {
			return fmt.Errorf("--pull-timeout: %w", err)
		}
		cfg.PullTimeout = d
	}
	if f.Changed("rate-limit") {
		cfg.RateLimit = rateLimit
	}
	if f.Changed("serialize-pulls") {
		cfg.SerializePulls = serializePulls
	}

	entries, err := mapping.ParseEntries(mappingFlags)
	if err != nil {
		return err
	}
	cfg.Mappings = append(cfg.Mappings, entries...)

	return nil
}

// configWarnings lists problems that do not stop the server from starting.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if w := cfg.SecretWarning(); w != "" {
		warnings = append(warnings, w)
	}
	if cfg.Source != "" && cfg.Secret != "" {
		if info, err := os.Stat(cfg.Source); err == nil && security.IsWorldReadable(info.Mode().Perm()) {
			warnings = append(warnings, fmt.Sprintf("config file %s is world-readable and may contain the secret (chmod 600 recommended)", cfg.Source))
		}
	}
	return warnings
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
