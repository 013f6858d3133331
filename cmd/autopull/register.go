package main

import (
	"errors"
	"fmt"

	"autopull/internal/config"
	"autopull/internal/ghhook"
	"autopull/internal/security"

	"github.com/spf13/cobra"
)

var (
	registerRepo  string
	registerURL   string
	registerKey   string
	registerToken string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a GitHub push webhook for a hook key",
	Long: `Create a push webhook on a GitHub repository that points at
<url>/<namespace>/<key> and is signed with the configured secret.

If no secret is configured a new one is generated and printed; configure the
server with it before the first delivery. An existing webhook with the same
URL is left untouched.`,
	Example: `  autopull register --repo octo/site --url https://hooks.example.com --key site`,
	Args:    cobra.NoArgs,
	RunE:    runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerRepo, "repo", "", "GitHub repository (owner/repo)")
	registerCmd.Flags().StringVar(&registerURL, "url", "", "Public base URL of this server")
	registerCmd.Flags().StringVar(&registerKey, "key", "", "Hook key to trigger")
	registerCmd.Flags().StringVar(&registerToken, "token", getEnvOrDefault("GITHUB_TOKEN", ""), "GitHub token with admin:repo_hook scope")
	_ = registerCmd.MarkFlagRequired("repo")
	_ = registerCmd.MarkFlagRequired("url")
	_ = registerCmd.MarkFlagRequired("key")
}

func runRegister(cmd *cobra.Command, args []string) error {
	owner, repo, err := security.ValidateOwnerRepo(registerRepo)
	if err != nil {
		return err
	}
	if err := security.ValidateKey(registerKey); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	if registerToken == "" {
		return fmt.Errorf("a GitHub token is required (--token or GITHUB_TOKEN)")
	}

	// The webhook can be registered before any mapping exists.
	cfg, err := loadConfig(cmd)
	if err != nil && !errors.Is(err, config.ErrNoMappings) {
		return err
	}

	mapped := false
	for _, entry := range cfg.Mappings {
		if entry.Key == registerKey {
			mapped = true
			break
		}
	}
	if !mapped {
		printWarn(fmt.Sprintf("Key %q is not mapped in the current configuration", registerKey))
	}

	secret := cfg.Secret
	generated := false
	if secret == "" {
		secret, err = security.GenerateSecret()
		if err != nil {
			return err
		}
		generated = true
	}

	hookURL := ghhook.HookURL(registerURL, cfg.EffectiveNamespace(), registerKey)
	client := ghhook.NewClient(cmd.Context(), registerToken)

	res, err := ghhook.Register(cmd.Context(), client, ghhook.Request{
		Owner:  owner,
		Repo:   repo,
		URL:    hookURL,
		Secret: secret,
	})
	if err != nil {
		printFail("Creating GitHub webhook...")
		return err
	}

	if !res.Created {
		printSuccess("Webhook already exists on GitHub...")
		fmt.Printf("  %s (hook id %d)\n", hookURL, res.HookID)
		return nil
	}

	printSuccess("Creating GitHub webhook...")
	fmt.Printf("  %s (hook id %d)\n", hookURL, res.HookID)
	if generated {
		fmt.Printf("\nGenerated webhook secret:\n  %s\n", secret)
		fmt.Printf("Start the server with --secret or AUTOPULL_SECRET set to this value.\n")
	}
	return nil
}
