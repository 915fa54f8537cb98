package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/Digital-Shane/guide-tidy/internal/core"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/guide-tidy/internal/metrics"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/store"
	"github.com/Digital-Shane/guide-tidy/internal/tui/preview"
	"github.com/Digital-Shane/guide-tidy/internal/tui/progress"
	"github.com/Digital-Shane/guide-tidy/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

type grabOptions struct {
	channelsFile string
	days         int
	date         string
	instant      bool
	dbPath       string
	preview      bool
	metricsFile  string
}

func newGrabCmd() *cobra.Command {
	opts := &grabOptions{}
	c := &cobra.Command{
		Use:   "grab",
		Short: "Download and normalize the guide for a channel list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runGrab(ctx, cmd.OutOrStdout(), appConfig, opts, args)
		},
	}

	c.Flags().StringVarP(&opts.channelsFile, "channels", "c", "", "YAML channel list to grab")
	c.Flags().IntVar(&opts.days, "days", 0, "Days to grab per channel (default: provider setting)")
	c.Flags().StringVar(&opts.date, "date", "", "First day to grab, YYYY-MM-DD (default: today UTC)")
	c.Flags().BoolVarP(&opts.instant, "instant", "i", false, "Skip the progress UI and log plainly")
	c.Flags().StringVar(&opts.dbPath, "db", "", "Store programs in this SQLite database")
	c.Flags().BoolVar(&opts.preview, "preview", false, "Show the grabbed guide when done")
	c.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	_ = c.MarkFlagRequired("channels")
	return c
}

func runGrab(ctx context.Context, out io.Writer, cfg *config.Config, opts *grabOptions, args []string) error {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := log.WithComponent("grab")

	date, err := parseDate(opts.date, time.Now())
	if err != nil {
		return err
	}
	channels, err := config.LoadChannels(opts.channelsFile)
	if err != nil {
		return err
	}

	unlock, err := lockDataDir()
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := log.StartSession("grab", args); err != nil {
		logger.Warn().Err(err).Msg("failed to start session log")
	}
	defer endSession(out)

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	fetcher, release, err := newFetcher(ctx, cfg, recorder)
	if err != nil {
		return err
	}
	defer release()

	var enricher *metadata.Enricher
	searcher, err := newSearcher(cfg)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("metadata enrichment disabled")
	case searcher != nil:
		enricher = metadata.NewEnricher(searcher,
			metadata.WithSearchTimeout(time.Duration(cfg.Search.TimeoutSeconds)*time.Second))
		defer saveSearchCache(searcher)
	}

	engine := core.NewGrabEngine(core.GrabConfig{
		Registry:        registry,
		Getter:          fetcher,
		Enricher:        enricher,
		Observer:        recorder,
		Channels:        channels,
		Date:            date,
		Days:            opts.days,
		WorkerCount:     cfg.WorkerCount,
		ItemConcurrency: cfg.ItemConcurrency,
	})

	interactive := !opts.instant && isTerminal(out)
	summary, err := runEngine(ctx, engine, interactive)
	if err != nil {
		return err
	}
	recorder.GrabFinished(time.Now())

	fmt.Fprintln(out, renderGrabSummary(engine.Results()))
	for _, e := range engine.Errors() {
		logger.Warn().Err(e).Msg("schedule failed")
	}
	if summary.Canceled {
		return context.Canceled
	}

	programs := engine.Programs()

	if dbPath := guide.FirstNonEmpty(opts.dbPath, cfg.DatabasePath); dbPath != "" {
		if err := storePrograms(ctx, dbPath, channels, programs); err != nil {
			return err
		}
		fmt.Fprintf(out, "Stored %d programs in %s\n", len(programs), dbPath)
	}

	if opts.metricsFile != "" {
		if err := recorder.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}

	if opts.preview {
		return showPreview(out, programs, interactive)
	}
	return nil
}

// lockDataDir keeps two grabs from writing the same database and logs.
func lockDataDir() (func(), error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "grab.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another guide-tidy grab is already running")
	}
	return func() { _ = lock.Unlock() }, nil
}

func runEngine(ctx context.Context, engine *core.GrabEngine, interactive bool) (core.GrabSummary, error) {
	if !interactive {
		logger := log.WithComponent("grab")
		for ev := range engine.Start(ctx) {
			if ev.Summary.LastJob != "" {
				logger.Info().
					Int("processed", ev.Summary.ProcessedJobs).
					Int("total", ev.Summary.TotalJobs).
					Int("programs", ev.Summary.Programs).
					Msg(ev.Summary.LastJob)
			}
		}
		return engine.SummarySnapshot(), nil
	}

	model := progress.NewGrabProgressModel(engine, theme.Default())
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return core.GrabSummary{}, fmt.Errorf("failed to run progress UI: %w", err)
	}
	pm, ok := final.(*progress.GrabProgressModel)
	if !ok {
		return engine.SummarySnapshot(), nil
	}
	if err := pm.Err(); err != nil {
		return core.GrabSummary{}, err
	}
	summary := pm.Summary()
	if !pm.Done() {
		summary.Canceled = true
	}
	return summary, nil
}

func renderGrabSummary(results []core.GrabResult) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
			var pe *provider.ProviderError
			if errors.As(res.Err, &pe) {
				status = pe.Code
			}
		}
		rows = append(rows, []string{
			res.Job.Site,
			guide.FirstNonEmpty(res.Job.Channel.Name, res.Job.Channel.ID()),
			res.Job.Date.Format(time.DateOnly),
			strconv.Itoa(len(res.Programs)),
			status,
		})
	}
	return renderTable(
		[]string{"Site", "Channel", "Date", "Programs", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func storePrograms(ctx context.Context, path string, channels []provider.Channel, programs []guide.Program) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	sites := make(map[string]string, len(channels))
	for _, ch := range channels {
		sites[ch.ID()] = ch.Site
	}

	for start := 0; start < len(programs); {
		end := start
		for end < len(programs) && programs[end].Channel == programs[start].Channel {
			end++
		}
		channel := programs[start].Channel
		n, err := db.SavePrograms(ctx, programs[start:end])
		log.LogStore(sites[channel], channel, n, err)
		if err != nil {
			return err
		}
		start = end
	}
	return nil
}

func showPreview(out io.Writer, programs []guide.Program, interactive bool) error {
	if !interactive {
		for _, line := range preview.Lines(programs, time.Local) {
			fmt.Fprintln(out, line)
		}
		return nil
	}
	th := theme.Default()
	model := preview.NewModel(preview.BuildTree(programs, time.Local, th), th)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run preview: %w", err)
	}
	return nil
}
