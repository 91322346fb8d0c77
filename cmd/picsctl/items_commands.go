package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store/sqlite"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect stored pictures",
	}

	itemsCmd.AddCommand(newItemsRankedCommand(ctx))
	itemsCmd.AddCommand(newItemsRecentCommand(ctx))

	return itemsCmd
}

func newItemsRankedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ranked",
		Short: "Show the ranking viewers see",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, st *sqlite.Store, _ *config.Config) error {
				items, err := st.GetRankedItems(c)
				if err != nil {
					return err
				}
				return printItems(cmd, ctx.opts.json, items, true)
			})
		},
	}
}

func newItemsRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the newest pictures",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}
			return ctx.withStore(cmd.Context(), cmd.ErrOrStderr(), func(c context.Context, st *sqlite.Store, _ *config.Config) error {
				items, err := st.GetRecentItems(c, limit)
				if err != nil {
					return err
				}
				return printItems(cmd, ctx.opts.json, items, false)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 30, "Number of pictures to show")

	return cmd
}

func printItems(cmd *cobra.Command, asJSON bool, items []*domain.Item, ranked bool) error {
	if asJSON {
		if items == nil {
			items = []*domain.Item{}
		}
		return writeJSON(cmd.OutOrStdout(), items)
	}

	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pictures yet")
		return nil
	}

	headers := []string{"ID", "Name", "Likes", "Created"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}
	if ranked {
		headers = append([]string{"#"}, headers...)
		aligns = append([]columnAlignment{alignRight}, aligns...)
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		row := []string{
			item.ID,
			truncate(item.DisplayName, 40),
			strconv.FormatInt(item.LikeCount, 10),
			formatTime(item.CreatedAt),
		}
		if ranked {
			row = append([]string{strconv.Itoa(i + 1)}, row...)
		}
		rows = append(rows, row)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
	return nil
}
