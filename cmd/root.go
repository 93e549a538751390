// Package cmd implements the command-line interface for socialgrab.
// It provides the root command and subcommands for extraction, the HTTP
// server, and credential pool management.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/socialgrab/cmd/cookies"
	"github.com/jonesrussell/socialgrab/cmd/extract"
	"github.com/jonesrussell/socialgrab/cmd/httpd"
	"github.com/jonesrussell/socialgrab/cmd/profiles"
	"github.com/jonesrussell/socialgrab/internal/config"
)

const version = "1.0.0"

// rootCmd represents the root command for the socialgrab CLI.
var rootCmd = &cobra.Command{
	Use:   "socialgrab",
	Short: "Social media link extraction service",
	Long: `Extracts downloadable media formats and metadata from social media
post URLs (Facebook, Instagram, TikTok, Twitter/X, Weibo, YouTube).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := config.InitializeViper(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("socialgrab version %s\n", version)
		},
	})

	rootCmd.AddCommand(extract.Command())
	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(cookies.Command())
	rootCmd.AddCommand(profiles.Command())
}
