// Package cookies implements credential pool management commands:
// adding, listing, enabling and disabling pool cookies.
package cookies

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/socialgrab/cmd/common"
	"github.com/jonesrussell/socialgrab/internal/cookiepool"
	"github.com/jonesrussell/socialgrab/internal/database"
	"github.com/jonesrussell/socialgrab/internal/domain"
)

var errInvalidTier = errors.New("tier must be public or private")

// Command returns the cookies command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage the credential pool",
	}

	cmd.AddCommand(addCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(setEnabledCommand("enable", true))
	cmd.AddCommand(setEnabledCommand("disable", false))

	return cmd
}

// poolDeps opens the database and builds the repository and cipher the
// cookie commands need.
func poolDeps() (*common.CommandDeps, *database.CookieRepository, *cookiepool.Cipher, func(), error) {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	db, err := common.OpenDatabase(deps.Config)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cipher, err := cookiepool.NewCipher(deps.Config.GetCookieKey())
	if err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("create cookie cipher: %w", err)
	}

	return deps, database.NewCookieRepository(db), cipher, func() { db.Close() }, nil
}

func addCommand() *cobra.Command {
	var (
		platform string
		tier     string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "add [cookie]",
		Short: "Add a cookie to the pool",
		Long: `Add a cookie header to the pool. The cookie value is read from the
argument, or from a file with --from-file to keep it out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cookie, err := cookieValue(args, fromFile)
			if err != nil {
				return err
			}
			if tier != domain.TierPublic && tier != domain.TierPrivate {
				return errInvalidTier
			}

			deps, repo, cipher, closeDB, err := poolDeps()
			if err != nil {
				return err
			}
			defer closeDB()

			ciphertext, err := sealCookie(cipher, cookie)
			if err != nil {
				return fmt.Errorf("encrypt cookie: %w", err)
			}

			id, err := repo.Create(cmd.Context(), database.CreateParams{
				Platform:         platform,
				Tier:             tier,
				CookieCiphertext: ciphertext,
			})
			if err != nil {
				return fmt.Errorf("store credential: %w", err)
			}

			deps.Logger.Info("Credential added", "id", id, "platform", platform, "tier", tier)
			fmt.Println(id)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "platform the cookie belongs to (required)")
	cmd.Flags().StringVar(&tier, "tier", domain.TierPublic, "credential tier (public or private)")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "read the cookie value from a file")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}

// sealCookie encrypts the cookie, or passes it through when no key is
// configured, matching how the pool reads stored values back.
func sealCookie(cipher *cookiepool.Cipher, cookie string) (string, error) {
	if cipher == nil {
		return cookie, nil
	}
	return cipher.Seal(cookie)
}

func cookieValue(args []string, fromFile string) (string, error) {
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("read cookie file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	return "", errors.New("cookie value required (argument or --from-file)")
}

func listCommand() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pool credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, _, closeDB, err := poolDeps()
			if err != nil {
				return err
			}
			defer closeDB()

			creds, err := repo.List(cmd.Context(), platform)
			if err != nil {
				return fmt.Errorf("list credentials: %w", err)
			}

			renderCredentials(creds)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform")

	return cmd
}

func renderCredentials(creds []domain.Credential) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Platform", "Tier", "Status", "Enabled", "Uses", "OK", "Errors", "Redirects"})

	for i := range creds {
		c := &creds[i]
		t.AppendRow(table.Row{
			c.ID, c.Platform, c.Tier, c.Status, c.Enabled,
			c.UseCount, c.SuccessCount, c.ErrorCount, c.LoginRedirects,
		})
	}

	t.Render()
}

func setEnabledCommand(use string, enabled bool) *cobra.Command {
	short := "Disable a credential"
	if enabled {
		short = "Re-enable a credential"
	}

	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, repo, _, closeDB, err := poolDeps()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repo.SetEnabled(cmd.Context(), args[0], enabled); err != nil {
				return fmt.Errorf("update credential: %w", err)
			}

			deps.Logger.Info("Credential updated", "id", args[0], "enabled", enabled)
			return nil
		},
	}
}
