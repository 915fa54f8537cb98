package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/scrape"
	"github.com/spf13/cobra"
)

func newChannelsCmd() *cobra.Command {
	var lang, output string
	c := &cobra.Command{
		Use:   "channels PROVIDER",
		Short: "List the channels a provider publishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry(appConfig)
			if err != nil {
				return err
			}
			getter, release, err := newFetcher(cmd.Context(), appConfig, nil)
			if err != nil {
				return err
			}
			defer release()
			return runChannels(cmd.Context(), cmd.OutOrStdout(), registry, getter, args[0], lang, output)
		},
	}
	c.Flags().StringVar(&lang, "lang", "", "Language to record for each channel")
	c.Flags().StringVarP(&output, "output", "o", "", "Write a YAML channel file instead of printing a table")
	return c
}

func runChannels(ctx context.Context, out io.Writer, registry *provider.Registry, getter provider.Getter, name, lang, output string) error {
	d, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown provider %q", name)
	}
	if d.ChannelList == nil {
		return fmt.Errorf("%s does not publish a channel list", d.Name)
	}

	body, err := getter.Get(ctx, fetch.Request{
		URL:     d.ChannelList.URL,
		Headers: d.ChannelList.Headers,
		Timeout: d.Timeout,
	})
	if err != nil {
		return provider.ClassifyError(d.Name, err)
	}
	entries, err := scrape.Channels(body, *d.ChannelList)
	if err != nil {
		return err
	}

	if output != "" {
		if err := config.SaveChannels(output, config.ChannelEntries(d.Site, lang, entries)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d channels to %s\n", len(entries), output)
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.SiteID, e.Name})
	}
	fmt.Fprintln(out, renderTable([]string{"Site ID", "Name"}, rows, nil))
	return nil
}
