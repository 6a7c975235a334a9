package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/creds"
	"github.com/memrelay/memrelay/internal/memory"
	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/retry"
	"github.com/memrelay/memrelay/internal/ui"
)

func newPushMemoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "push-memory",
		GroupID: "data",
		Short:   "Upload memory notes to the knowledge index",
		Long: `Upload every markdown note in the memory directory.

Notes are keyed by file name, so pushing again replaces earlier
versions instead of duplicating them. YAML front matter (title, tags)
becomes document metadata.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			apiKey, err := creds.Load(cfg.CredentialsFile, cfg.Profile)
			if err != nil {
				return err
			}

			logger := log.New(os.Stdout, "", 0)
			client := remote.NewHTTPClient(cfg.APIBaseURL, apiKey)
			exec := retry.New(&retry.Config{
				MaxAttempts: cfg.RetryAttempts,
				BaseDelay:   cfg.RetryBaseDelay,
				CallTimeout: cfg.CallTimeout,
				Logger:      logger,
			})

			pusher, err := memory.New(client, exec, &memory.Config{
				MemoryDir:    cfg.MemoryDir,
				ContainerTag: cfg.ContainerTag,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			pushed, err := pusher.PushAll(cmd.Context())
			if err != nil {
				return err
			}
			if pushed > 0 {
				fmt.Printf("%s Pushed %d notes\n", ui.RenderPass("✓"), pushed)
			}
			return nil
		},
	}
}
