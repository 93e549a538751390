// Package extract implements the one-shot extraction command: resolve a URL,
// run the platform strategy chain, and print the media formats found.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/socialgrab/cmd/common"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/orchestrator"
)

var errExtractionFailed = errors.New("extraction failed")

// Command returns the extract command.
func Command() *cobra.Command {
	var (
		tier      string
		skipCache bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract media formats from a social media URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], orchestrator.Options{Tier: tier, SkipCache: skipCache}, asJSON)
		},
	}

	cmd.Flags().StringVar(&tier, "tier", domain.TierPublic, "credential tier (public or private)")
	cmd.Flags().BoolVar(&skipCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result envelope as JSON")

	return cmd
}

func run(cmd *cobra.Command, rawURL string, opts orchestrator.Options, asJSON bool) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// One-shot extraction degrades rather than fails: no database means
	// guest-only requests, no Redis means no cache.
	db, dbErr := common.OpenDatabase(deps.Config)
	if dbErr != nil {
		deps.Logger.Warn("Database unavailable, extracting without credentials", "error", dbErr)
	} else {
		defer db.Close()
	}

	redisClient, redisErr := common.OpenRedis(ctx, deps.Config)
	if redisErr != nil {
		deps.Logger.Warn("Redis unavailable, extracting without cache", "error", redisErr)
	} else {
		defer redisClient.Close()
	}

	stack, err := common.BuildExtractionStack(deps, db, redisClient)
	if err != nil {
		return err
	}
	if stack.Rotator != nil {
		if refreshErr := stack.Rotator.Refresh(ctx); refreshErr != nil {
			deps.Logger.Warn("Failed to load browser profiles", "error", refreshErr)
		}
	}

	result := stack.Orchestrator.Extract(ctx, rawURL, opts)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return fmt.Errorf("encode result: %w", encErr)
		}
		if !result.Success {
			return errExtractionFailed
		}
		return nil
	}

	if !result.Success {
		return fmt.Errorf("%w: %s (%s)", errExtractionFailed, result.Error, result.ErrorCode)
	}

	printResult(result.Data)
	return nil
}

func printResult(data *domain.ExtractionData) {
	fmt.Printf("Title:  %s\n", data.Title)
	if data.Author != "" {
		fmt.Printf("Author: %s\n", data.Author)
	}
	fmt.Printf("Type:   %s\n", data.Type)
	fmt.Printf("URL:    %s\n", data.URL)
	fmt.Println()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Item", "Type", "Quality", "Format", "URL"})

	for _, f := range data.Formats {
		t.AppendRow(table.Row{f.ItemID, f.Type, f.Quality, f.Format, truncate(f.URL, 80)})
	}

	t.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
