package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"kubewatch/internal/config"
	"kubewatch/internal/db"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
)

var errHistoryDisabled = errors.New("dispatch history is disabled, set history_path in the config file")

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent command dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ResolvePath(*configPath))
			if err != nil {
				return err
			}
			if cfg.HistoryPath == "" {
				return errHistoryDisabled
			}

			hdb, err := db.NewHistoryDB(db.Config{
				Path:    cfg.HistoryPath,
				Options: &bbolt.Options{ReadOnly: true, Timeout: time.Second},
			})
			if err != nil {
				return err
			}
			defer hdb.Close()

			records, err := hdb.RecentDispatches(limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show, 0 for all")

	return cmd
}

func printHistory(out io.Writer, records []*db.DispatchRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no dispatches recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tSTATUS\tFILES")
	for _, rec := range records {
		status := color.GreenString("ok")
		if !rec.Success {
			status = color.RedString("failed")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Duration.Round(time.Millisecond),
			status,
			strings.Join(rec.Files, " "),
		)
		if rec.Error != "" {
			fmt.Fprintf(w, "\t\t\t\t%s\n", rec.Error)
		}
	}
	return w.Flush()
}
