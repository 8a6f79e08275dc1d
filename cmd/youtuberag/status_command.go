package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"youtuberag/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if health.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := [][]string{
					{"pending", strconv.Itoa(health.Pending)},
					{"running", strconv.Itoa(health.Running)},
					{"completed", strconv.Itoa(health.Completed)},
					{"failed", strconv.Itoa(health.Failed)},
					{"total", strconv.Itoa(health.Total)},
				}
				out := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}
