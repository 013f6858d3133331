package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"autopull/internal/config"
	"autopull/internal/history"
	"autopull/internal/runner"
	"autopull/internal/security"
	"autopull/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server and run the mapped targets for every hook request.

Mappings come from -a flags, AUTOPULL_MAPPINGS and the config file.
At least one mapping is required.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if errors.Is(err, config.ErrNoMappings) {
		_ = cmd.Help()
		return err
	}
	if err != nil {
		return err
	}

	m, err := cfg.BuildMapping()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(logFile, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLog()

	logger.Info("Starting autopull", "version", version, "mode", cfg.Mode, "config", cfg.Source)
	for _, w := range configWarnings(cfg) {
		logger.Warn(w)
	}

	hist, err := history.NewHistory(history.MemoryDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize run log: %w", err)
	}

	exec := runner.NewExecutor(cfg.RunnerOptions(), logger)
	srv := server.NewServer(m, exec, hist, logger, server.Options{
		Namespace: cfg.EffectiveNamespace(),
		Secret:    cfg.Secret,
		RateLimit: cfg.RateLimit,
	})

	for _, entry := range m.Entries() {
		logger.Info("Mapped hook", "path", srv.HookPath(entry.Key), "target", entry.Target)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx, cfg.Host, cfg.Port); err != nil {
		logger.Error("Server failed", "error", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// setupLogging configures a JSON slog logger writing to stdout and, if
// logPath is set, to that file. The returned func closes the file.
func setupLogging(logPath, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}

	if logPath != "" {
		file, err := security.OpenLogFile(logPath)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = func() { file.Close() }
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler), closeFn, nil
}
