package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/spf13/cobra"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported guide sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := newRegistry(appConfig)
			if err != nil {
				return err
			}
			printProviders(cmd.OutOrStdout(), registry)
			return nil
		},
	}
}

func printProviders(out io.Writer, registry *provider.Registry) {
	rows := [][]string{}
	for _, name := range registry.List() {
		d, ok := registry.Get(name)
		if !ok {
			continue
		}
		enabled := "yes"
		if !registry.IsEnabled(name) {
			enabled = "no"
		}
		channelList := "no"
		if d.ChannelList != nil {
			channelList = "yes"
		}
		enrich := "no"
		if d.SearchKind != nil {
			enrich = "yes"
		}
		rows = append(rows, []string{d.Name, d.Site, strconv.Itoa(d.Days), enabled, channelList, enrich})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Name", "Site", "Days", "Enabled", "Channel List", "Enrichment"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))
}
