package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/iiify/ingest"
)

// JobsCmd groups import job inspection commands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect import jobs",
	Long: `Inspect the import job queue.

Job management commands:
  iiify jobs ls              # List queued jobs
  iiify jobs ls --status failed
  iiify jobs status <id>     # Show job details`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsLsCmd lists import jobs
var JobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List import jobs",
	Long: `List import jobs, optionally filtered by status.

Status filters:
  queued   - Jobs waiting to be processed
  started  - Jobs currently being processed
  finished - Successfully completed imports
  failed   - Imports that failed with errors

Examples:
  iiify jobs ls                   # List queued jobs
  iiify jobs ls --status failed   # List failed imports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		return runJobsLs(cmd, statusFilter)
	},
}

// JobsStatusCmd shows one job as the API would report it
var JobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show status of an import job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus(cmd, args[0])
	},
}

func init() {
	JobsLsCmd.Flags().String("status", "queued", "Filter by status (queued, started, finished, failed)")

	JobsCmd.AddCommand(JobsLsCmd)
	JobsCmd.AddCommand(JobsStatusCmd)
}

func runJobsLs(cmd *cobra.Command, statusFilter string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	queue := ingest.NewQueue(database)
	jobs, err := queue.ListByStatus(ingest.Status(statusFilter))
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Printf("No %s jobs\n", statusFilter)
		return nil
	}

	for _, job := range jobs {
		line := fmt.Sprintf("%s  %-8s  %s", job.ID, job.Status, job.SourceURL)
		if job.Failure != nil {
			line += "  (" + job.Failure.Message + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d job(s)\n", len(jobs))
	return nil
}

func runJobsStatus(cmd *cobra.Command, jobID string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	queue := ingest.NewQueue(database)
	job, err := queue.GetJob(jobID)
	if err != nil {
		return err
	}
	view, err := queue.StatusView(job)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
