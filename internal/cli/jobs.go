package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmkonnect/reconcile/internal/migration"
)

var (
	jobFarm        string
	jobName        string
	jobDescription string
	jobSchedule    string
	jobAnchor      string
	jobStrategy    string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled migration jobs",
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a scheduled migration job",
	RunE: func(cmd *cobra.Command, args []string) error {
		anchor := time.Now()
		if jobAnchor != "" {
			var err error
			anchor, err = time.Parse(time.RFC3339, jobAnchor)
			if err != nil {
				return fmt.Errorf("parse --time: %w", err)
			}
		}

		job, err := svc.CreateJob(jobFarm, jobName, jobDescription,
			migration.Schedule(jobSchedule), anchor, migration.Strategy(jobStrategy))
		if err != nil {
			return err
		}

		fmt.Printf("Created job %s\n", job.ID)
		printJob(job)
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a farm's migration jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := svc.ListJobs(jobFarm)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}
		for _, job := range jobs {
			printJob(job)
			fmt.Println()
		}
		return nil
	},
}

var jobsRescheduleCmd = &cobra.Command{
	Use:   "reschedule <job-id>",
	Short: "Change a job's recurrence and anchor time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		anchor := time.Now()
		if jobAnchor != "" {
			var err error
			anchor, err = time.Parse(time.RFC3339, jobAnchor)
			if err != nil {
				return fmt.Errorf("parse --time: %w", err)
			}
		}

		job, err := svc.RescheduleJob(args[0], migration.Schedule(jobSchedule), anchor)
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a migration job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := svc.DeleteJob(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("No job with id %s\n", args[0])
			return nil
		}
		fmt.Printf("Deleted job %s\n", args[0])
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Execute a migration job once with seed records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := svc.GetJob(args[0])
		if err != nil {
			return err
		}
		records, err := provider.Records(job.FarmID)
		if err != nil {
			return err
		}

		result, err := svc.Execute(job.ID, records)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

var jobsResultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Show a job's execution history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := svc.GetResults(args[0])
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results recorded.")
			return nil
		}
		for _, r := range results {
			printResult(r)
			fmt.Println()
		}
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats <job-id>",
	Short: "Show a job's run statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := svc.GetStats(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Runs:         %d (%d successful, %d failed)\n",
			stats.TotalRuns, stats.SuccessfulRuns, stats.FailedRuns)
		fmt.Printf("Success rate: %.1f%%\n", stats.SuccessRatePercent)
		fmt.Printf("Records:      %d migrated, %d failed\n",
			stats.TotalMigrated, stats.TotalFailed)
		fmt.Printf("Avg duration: %.1fms\n", stats.AverageDurationMs)
		return nil
	},
}

var jobsDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List jobs eligible to run now",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := svc.DueJobs(time.Now())
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs due.")
			return nil
		}
		for _, job := range jobs {
			printJob(job)
			fmt.Println()
		}
		return nil
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a farm's execution history across all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := svc.History(jobFarm, cfg.Engine.HistoryLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No history recorded.")
			return nil
		}
		for _, r := range results {
			printResult(r)
			fmt.Println()
		}
		return nil
	},
}

func printJob(job *migration.ScheduledMigrationJob) {
	fmt.Printf("%s  %s\n", job.ID, job.Name)
	fmt.Printf("  farm=%s schedule=%s strategy=%s status=%s\n",
		job.FarmID, job.Schedule, job.Strategy, job.Status)
	if job.LastRun != nil {
		fmt.Printf("  last run: %s\n", job.LastRun.Format(time.RFC3339))
	}
	if job.NextRun != nil {
		fmt.Printf("  next run: %s\n", job.NextRun.Format(time.RFC3339))
	}
	fmt.Printf("  runs: %d total, %d successful, %d failed\n",
		job.TotalRuns, job.SuccessfulRuns, job.FailedRuns)
}

func printResult(r *migration.MigrationJobResult) {
	fmt.Printf("%s  %s  %s\n", r.JobID, r.CompletedAt.Format(time.RFC3339), r.Status)
	fmt.Printf("  %d/%d migrated, %d failed, took %s\n",
		r.MigratedTasks, r.TotalTasks, r.FailedTasks, r.Duration)
	for _, e := range r.Errors {
		fmt.Printf("  error: %s: %s\n", e.RecordID, e.Message)
	}
}

func init() {
	jobsCreateCmd.Flags().StringVar(&jobFarm, "farm", "", "Owning farm id")
	jobsCreateCmd.Flags().StringVar(&jobName, "name", "", "Job name")
	jobsCreateCmd.Flags().StringVar(&jobDescription, "description", "", "Job description")
	jobsCreateCmd.Flags().StringVar(&jobSchedule, "schedule", "daily", "Recurrence: daily, weekly, monthly or once")
	jobsCreateCmd.Flags().StringVar(&jobAnchor, "time", "", "Anchor time (RFC 3339, default now)")
	jobsCreateCmd.Flags().StringVar(&jobStrategy, "strategy", "merge", "Conflict strategy: overwrite, merge or skip_existing")
	jobsCreateCmd.MarkFlagRequired("farm")
	jobsCreateCmd.MarkFlagRequired("name")

	jobsListCmd.Flags().StringVar(&jobFarm, "farm", "", "Owning farm id")
	jobsListCmd.MarkFlagRequired("farm")

	jobsRescheduleCmd.Flags().StringVar(&jobSchedule, "schedule", "daily", "Recurrence: daily, weekly, monthly or once")
	jobsRescheduleCmd.Flags().StringVar(&jobAnchor, "time", "", "Anchor time (RFC 3339, default now)")

	jobsHistoryCmd.Flags().StringVar(&jobFarm, "farm", "", "Owning farm id")
	jobsHistoryCmd.MarkFlagRequired("farm")

	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRescheduleCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
	jobsCmd.AddCommand(jobsRunCmd)
	jobsCmd.AddCommand(jobsResultsCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	jobsCmd.AddCommand(jobsDueCmd)
	jobsCmd.AddCommand(jobsHistoryCmd)
}
