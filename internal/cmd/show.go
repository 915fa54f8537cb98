package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/store"
	"github.com/Digital-Shane/guide-tidy/internal/tui/preview"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var dbPath, channel, date string
	c := &cobra.Command{
		Use:   "show",
		Short: "List stored programs for a channel and day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			path := guide.FirstNonEmpty(dbPath, appConfigDatabase())
			if path == "" {
				return fmt.Errorf("no database given (use --db or database_path)")
			}
			return runShow(cmd.Context(), cmd.OutOrStdout(), path, channel, day)
		},
	}
	c.Flags().StringVar(&dbPath, "db", "", "SQLite database written by grab")
	c.Flags().StringVar(&channel, "channel", "", "Channel id (xmltv id or site id)")
	c.Flags().StringVar(&date, "date", "", "Day to show, YYYY-MM-DD (default: today UTC)")
	return c
}

func appConfigDatabase() string {
	if appConfig == nil {
		return config.DefaultConfig().DatabasePath
	}
	return appConfig.DatabasePath
}

func runShow(ctx context.Context, out io.Writer, path, channel string, day time.Time) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if channel == "" {
		counts, err := db.Channels(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(counts))
		for _, id := range slices.Sorted(maps.Keys(counts)) {
			rows = append(rows, []string{id, fmt.Sprint(counts[id])})
		}
		fmt.Fprintln(out, renderTable([]string{"Channel", "Programs"}, rows, []columnAlignment{alignLeft, alignRight}))
		return nil
	}

	programs, err := db.Programs(ctx, channel, day, day.Add(24*time.Hour))
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		fmt.Fprintf(out, "No programs for %s on %s\n", channel, day.Format(time.DateOnly))
		return nil
	}
	for _, line := range preview.Lines(programs, time.Local) {
		fmt.Fprintln(out, line)
	}
	return nil
}
