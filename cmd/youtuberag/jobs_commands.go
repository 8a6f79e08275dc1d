package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"youtuberag/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage processing jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				var statuses []queue.Status
				for _, raw := range listStatuses {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.VideoID,
						string(job.Status),
						string(job.CurrentStage),
						strconv.Itoa(job.Progress) + "%",
						fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
						formatTime(&job.CreatedAt),
					})
				}
				out := renderTable(
					[]string{"ID", "Video", "Status", "Stage", "Progress", "Retries", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, running, completed, failed)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				printJob(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw job record as JSON")
	return cmd
}

func printJob(cmd *cobra.Command, job *queue.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Video:        %s\n", job.VideoID)
	fmt.Fprintf(out, "  Type:         %s\n", job.Type)
	fmt.Fprintf(out, "  Status:       %s\n", job.Status)
	fmt.Fprintf(out, "  Stage:        %s\n", job.CurrentStage)
	fmt.Fprintf(out, "  Progress:     %d%%\n", job.Progress)
	fmt.Fprintf(out, "  Retries:      %d/%d\n", job.RetryCount, job.MaxRetries)
	if job.LastFailureCategory != "" {
		fmt.Fprintf(out, "  Last failure: %s\n", job.LastFailureCategory)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:        %s\n", job.ErrorMessage)
	}
	if job.NextRetryAt != nil {
		fmt.Fprintf(out, "  Next retry:   %s\n", formatTime(job.NextRetryAt))
	}
	if job.IsDeadLettered() {
		fmt.Fprintln(out, "  Dead-lettered: yes")
	}
	fmt.Fprintf(out, "  Created:      %s\n", formatTime(&job.CreatedAt))
	fmt.Fprintf(out, "  Updated:      %s\n", formatTime(&job.UpdatedAt))

	if len(job.StageProgress) > 0 {
		fmt.Fprintln(out, "  Stage progress:")
		for _, stage := range queue.PipelineStages {
			if percent, ok := job.StageProgress[stage]; ok {
				fmt.Fprintf(out, "    %-17s %3d%%\n", stage, percent)
			}
		}
	}
	if len(job.Metadata) > 0 {
		fmt.Fprintln(out, "  Metadata:")
		keys := make([]string, 0, len(job.Metadata))
		for key := range job.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(out, "    %s: %s\n", key, job.Metadata[key])
		}
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a failed job with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.RetryJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d requeued at stage %s\n", job.ID, job.CurrentStage)
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Clear(cmd.Context(), clearAll)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every job, not just finished ones")
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
