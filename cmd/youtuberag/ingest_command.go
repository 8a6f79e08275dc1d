package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var priority int

	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Submit a video URL for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			if url == "" {
				return fmt.Errorf("url must not be empty")
			}
			if priority < 0 || priority > 2 {
				return fmt.Errorf("priority must be 0 (low), 1 (normal), or 2 (high)")
			}

			payload := map[string]any{
				"url":      url,
				"user_id":  userID,
				"priority": priority,
			}
			var resp struct {
				VideoID string `json:"video_id"`
				JobID   int64  `json:"job_id"`
				Status  string `json:"status"`
			}
			if err := ctx.postAPI("/api/v1/videos/ingest", payload, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested video %s\n", resp.VideoID)
			fmt.Fprintf(out, "Job %d queued (%s)\n", resp.JobID, resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User identifier to associate with the video")
	cmd.Flags().IntVarP(&priority, "priority", "p", 1, "Job priority: 0 low, 1 normal, 2 high")
	return cmd
}
