package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/creds"
	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/retry"
	"github.com/memrelay/memrelay/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var since string

	cmd := &cobra.Command{
		Use:     "search <query>",
		GroupID: "data",
		Short:   "Search synced conversations and memory",
		Long: `Search the remote index for past conversation and memory content.

The --since flag accepts natural-language expressions:

  memrelay search "retry backoff" --since "last friday"
  memrelay search database schema --since "3 days ago" --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			apiKey, err := creds.Load(cfg.CredentialsFile, cfg.Profile)
			if err != nil {
				return err
			}

			req := remote.SearchRequest{
				Query:         strings.Join(args, " "),
				ContainerTags: []string{cfg.ContainerTag},
				Limit:         limit,
			}
			if since != "" {
				at, err := parseSince(since)
				if err != nil {
					return err
				}
				req.Since = at.UTC().Format(time.RFC3339)
			}

			client := remote.NewHTTPClient(cfg.APIBaseURL, apiKey)
			exec := retry.New(&retry.Config{
				MaxAttempts: cfg.RetryAttempts,
				BaseDelay:   cfg.RetryBaseDelay,
				CallTimeout: cfg.CallTimeout,
				Logger:      log.New(os.Stderr, "", 0),
			})

			var resp *remote.SearchResponse
			err = exec.Do(cmd.Context(), "search", func(ctx context.Context) error {
				var callErr error
				resp, callErr = client.Search(ctx, req)
				return callErr
			})
			if err != nil {
				return err
			}

			printResults(resp)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().StringVar(&since, "since", "", `Only match content created after this time ("last friday", "3 days ago")`)
	return cmd
}

// parseSince turns a natural-language time expression into a concrete
// instant.
func parseSince(expr string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(expr, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time expression %q: %w", expr, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand time expression %q", expr)
	}
	return result.Time, nil
}

func printResults(resp *remote.SearchResponse) {
	p := ui.New(os.Stdout)

	if len(resp.Results) == 0 {
		fmt.Println("No results")
		return
	}

	total := resp.Total
	if total == 0 {
		total = len(resp.Results)
	}
	fmt.Printf("%s\n\n", p.Title.Render(fmt.Sprintf("%d results", total)))

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		meta := fmt.Sprintf("score %.2f, %s", r.Score, ui.FormatResultTime(r.CreatedAt))
		fmt.Printf("%d. %s  %s\n", i+1, p.Label.Render(title), p.Faint.Render(meta))
		fmt.Printf("   %s\n\n", snippet(r.Content, 200))
	}
}

// snippet flattens content to one line and truncates it for display.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
