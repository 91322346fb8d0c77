package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/media/images"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/service"
	"github.com/picsapp/picsapp-server/internal/store/sqlite"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Queue legacy pictures and orphaned uploads for conversion",
		Long: "Runs the same scan the server performs at startup. A running server\n" +
			"picks the new tasks up on its next poll.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, st *sqlite.Store, cfg *config.Config) error {
				log := ctx.logger(cmd.ErrOrStderr())

				uploads, err := images.NewStorage(cfg.Storage.UploadDir)
				if err != nil {
					return err
				}
				raw, err := images.NewRawStorage(cfg.Storage.OriginalDir)
				if err != nil {
					return err
				}

				reconciler := service.NewReconciler(st, queue.New(st, log), uploads, raw, log)
				report, err := reconciler.Run(c)
				if err != nil {
					return err
				}

				if ctx.opts.json {
					return writeJSON(cmd.OutOrStdout(), report)
				}

				rows := [][]string{
					{"Legacy pictures queued", strconv.Itoa(report.Legacy)},
					{"Orphaned uploads queued", strconv.Itoa(report.Orphans)},
					{"Already queued", strconv.Itoa(report.Duplicates)},
					{"Errors", strconv.Itoa(report.Errors)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Result", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
