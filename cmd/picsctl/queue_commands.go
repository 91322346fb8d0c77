package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store"
	"github.com/picsapp/picsapp-server/internal/store/sqlite"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the conversion queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, st *sqlite.Store, _ *config.Config) error {
				stats, err := st.TaskStats(c)
				if err != nil {
					return err
				}

				if ctx.opts.json {
					return writeJSON(cmd.OutOrStdout(), stats)
				}

				rows := buildQueueStatusRows(stats)
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func buildQueueStatusRows(stats domain.TaskStats) [][]string {
	rows := make([][]string, 0, len(domain.TaskStatuses)+1)
	total := 0
	for _, status := range domain.TaskStatuses {
		count := stats[status]
		total += count
		rows = append(rows, []string{titleCase(string(status)), strconv.Itoa(count)})
	}
	return append(rows, []string{"Total", strconv.Itoa(total)})
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		listStatuses []string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion tasks, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.TaskFilter{Limit: limit}
			for _, raw := range listStatuses {
				status := domain.TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
				if !status.Valid() {
					return fmt.Errorf("unknown status %q (want pending, processing, completed or failed)", raw)
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			return ctx.withStore(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, st *sqlite.Store, _ *config.Config) error {
				tasks, err := st.ListTasks(c, filter)
				if err != nil {
					return err
				}

				if ctx.opts.json {
					if tasks == nil {
						tasks = []*domain.ConversionTask{}
					}
					return writeJSON(cmd.OutOrStdout(), tasks)
				}

				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Source", "Status", "Target", "Error", "Updated"},
					buildQueueListRows(tasks),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Only tasks in these statuses (repeatable or comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of tasks (0 for all)")

	return cmd
}

func buildQueueListRows(tasks []*domain.ConversionTask) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(task.ID, 10),
			truncate(task.SourceName, 40),
			string(task.Status),
			task.TargetItemID.OrElse("-"),
			truncate(task.ErrorMessage.OrElse(""), 50),
			formatTime(task.UpdatedAt),
		})
	}
	return rows
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
