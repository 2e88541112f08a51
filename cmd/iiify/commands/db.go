package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the iiify database",
	Long: `Manage database operations including migrations and statistics.

Examples:
  iiify db migrate   # Apply pending schema migrations
  iiify db stats     # Show database statistics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display manifest, image and import job counts for the configured database",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// openDatabase migrates as part of opening
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("Database at %s is up to date\n", cfg.DB.Path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var manifests, identifiers, images, files int
	err = database.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM manifests),
			(SELECT COUNT(*) FROM identifiers),
			(SELECT COUNT(*) FROM iiif_images),
			(SELECT COUNT(*) FROM image_files)
	`).Scan(&manifests, &identifiers, &images, &files)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to query storage stats: %w", err)
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n", cfg.DB.Path)
	fmt.Printf("Manifests:     %d\n", manifests)
	fmt.Printf("Identifiers:   %d\n", identifiers)
	fmt.Printf("Images:        %d\n", images)
	fmt.Printf("Image Files:   %d\n", files)
	fmt.Println()

	rows, err := database.Query(`
		SELECT status, COUNT(*) FROM import_jobs GROUP BY status ORDER BY status
	`)
	if err != nil {
		return fmt.Errorf("failed to query job stats: %w", err)
	}
	defer rows.Close()

	fmt.Printf("Import Jobs:\n")
	hasJobs := false
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("failed to scan job stats: %w", err)
		}
		hasJobs = true
		fmt.Printf("  %-10s %d\n", status, count)
	}
	if !hasJobs {
		fmt.Println("  No import jobs recorded yet")
	}
	return rows.Err()
}
