package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/iiify/cmd/iiify/commands"
	"github.com/teranos/iiify/logger"
)

var rootCmd = &cobra.Command{
	Use:   "iiify",
	Short: "iiify - METS/MODS to IIIF import service",
	Long: `iiify - Make digitized documents IIIF-compatible.

iiify fetches METS/MODS documents, converts them into IIIF Presentation
manifests and serves them alongside a level 0 IIIF Image API.

Available commands:
  server  - Start the HTTP server and import workers
  import  - Import a single METS document and exit
  jobs    - Inspect import jobs
  db      - Manage the iiify database
  version - Show version information

Examples:
  iiify server                                  # Start the service
  iiify import https://example.org/mets.xml     # One-shot import
  iiify jobs ls --status failed                 # List failed imports
  iiify db stats                                # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: iiify.yaml in . or ~/.config/iiify)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
