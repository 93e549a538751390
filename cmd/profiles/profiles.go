// Package profiles implements browser profile management commands.
package profiles

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/socialgrab/cmd/common"
	"github.com/jonesrussell/socialgrab/internal/database"
	"github.com/jonesrussell/socialgrab/internal/domain"
)

// Command returns the profiles command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage browser fingerprint profiles",
	}

	cmd.AddCommand(addCommand())
	cmd.AddCommand(listCommand())

	return cmd
}

func repoDeps() (*common.CommandDeps, *database.ProfileRepository, func(), error) {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := common.OpenDatabase(deps.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return deps, database.NewProfileRepository(db), func() { db.Close() }, nil
}

func addCommand() *cobra.Command {
	var (
		platform       string
		userAgent      string
		secChUa        string
		acceptLanguage string
		priority       int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a browser profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, repo, closeDB, err := repoDeps()
			if err != nil {
				return err
			}
			defer closeDB()

			params := database.ProfileParams{
				Platform:       platform,
				UserAgent:      userAgent,
				AcceptLanguage: acceptLanguage,
				Priority:       priority,
			}
			if secChUa != "" {
				params.SecChUa = &secChUa
			}

			id, err := repo.Create(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("store profile: %w", err)
			}

			deps.Logger.Info("Profile added", "id", id, "platform", platform)
			fmt.Println(id)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", domain.PlatformAll, "platform the profile applies to, or all")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header value (required)")
	cmd.Flags().StringVar(&secChUa, "sec-ch-ua", "", "Sec-Ch-Ua header value")
	cmd.Flags().StringVar(&acceptLanguage, "accept-language", "en-US,en;q=0.9", "Accept-Language header value")
	cmd.Flags().IntVar(&priority, "priority", 1, "selection weight, higher is picked more often")
	_ = cmd.MarkFlagRequired("user-agent")

	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List browser profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, closeDB, err := repoDeps()
			if err != nil {
				return err
			}
			defer closeDB()

			profiles, err := repo.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list profiles: %w", err)
			}

			renderProfiles(profiles)
			return nil
		},
	}
}

func renderProfiles(profiles []domain.BrowserProfile) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Platform", "User Agent", "Priority", "Enabled", "Uses", "OK", "Errors"})

	for i := range profiles {
		p := &profiles[i]
		t.AppendRow(table.Row{
			p.ID, p.Platform, p.UserAgent, p.Priority, p.Enabled,
			p.UseCount, p.SuccessCount, p.ErrorCount,
		})
	}

	t.Render()
}
