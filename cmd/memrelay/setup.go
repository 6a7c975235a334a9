package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/creds"
	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/ui"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "setup",
		GroupID: "data",
		Short:   "Interactive first-run configuration",
		Long: `Collect an API key and container tag, verify them against the remote
service, and write the credentials file.

The container tag is not stored by setup; export it in your shell
profile along with any other overrides:

  export MEMRELAY_CONTAINER_TAG="work-laptop"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup must work before a container tag is exported, so
			// the lenient loader skips validation.
			cfg, err := config.LoadLenient()
			if err != nil {
				return err
			}

			var apiKey string
			containerTag := cfg.ContainerTag

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("API key").
						Description("From your provider's dashboard").
						EchoMode(huh.EchoModePassword).
						Validate(func(s string) error {
							if strings.TrimSpace(s) == "" {
								return fmt.Errorf("an API key is required")
							}
							return nil
						}).
						Value(&apiKey),
					huh.NewInput().
						Title("Container tag").
						Description("Stable name for this machine, e.g. work-laptop").
						Placeholder("work-laptop").
						Validate(func(s string) error {
							return config.ValidateTag(strings.TrimSpace(s))
						}).
						Value(&containerTag),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
			apiKey = strings.TrimSpace(apiKey)
			containerTag = strings.TrimSpace(containerTag)

			// Verify the key against the live service before saving.
			client := remote.NewHTTPClient(cfg.APIBaseURL, apiKey)
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CallTimeout)
			defer cancel()

			profile, err := client.Profile(ctx)
			if err != nil {
				var apiErr *remote.APIError
				if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
					return fmt.Errorf("the service rejected this API key, check it and try again")
				}
				return fmt.Errorf("failed to verify API key: %w", err)
			}

			if err := creds.Save(cfg.CredentialsFile, cfg.Profile, apiKey); err != nil {
				return err
			}

			fmt.Printf("%s Credentials saved to %s (account %s)\n", ui.RenderPass("✓"), cfg.CredentialsFile, profile.Email)
			fmt.Println()
			fmt.Println(ui.RenderAccent("Add this to your shell profile:"))
			fmt.Println()
			fmt.Printf("  export MEMRELAY_CONTAINER_TAG=%q\n", containerTag)
			fmt.Println()
			fmt.Println("Then start the daemon with: memrelay start")
			return nil
		},
	}
}
