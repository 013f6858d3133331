package main

import (
	"errors"
	"fmt"

	"autopull/internal/config"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration without starting the server",
	Long: `Load the configuration exactly like "serve" does, check every mapped
target and print the resulting hook routes.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if errors.Is(err, config.ErrNoMappings) {
		printFail("Mappings")
		return err
	}
	if err != nil {
		printFail("Configuration")
		return err
	}
	if cfg.Source != "" {
		printSuccess(fmt.Sprintf("Loaded %s", cfg.Source))
	}

	m, err := cfg.BuildMapping()
	if err != nil {
		printFail("Mapped targets")
		return err
	}

	for _, entry := range m.Entries() {
		printSuccess(fmt.Sprintf("POST /%s/%s -> %s (%s)",
			cfg.EffectiveNamespace(), entry.Key, entry.Target, cfg.Mode.TargetKind()))
	}

	for _, w := range configWarnings(cfg) {
		printWarn(w)
	}

	fmt.Printf("\nConfiguration OK: %d mapping(s), %d key(s), listening on %s:%d\n",
		m.Count(), len(m.Keys()), cfg.Host, cfg.Port)
	return nil
}
