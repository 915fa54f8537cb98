package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "sessions",
		Short: "List recent grab session logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := log.ReadSessions(limit)
			if err != nil {
				return err
			}
			printSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 10, "Number of sessions to show")
	return c
}

func printSessions(out io.Writer, sessions []*log.LogSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No grab sessions recorded.")
		return
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		md := s.Metadata
		rows = append(rows, []string{
			md.Timestamp.Local().Format("2006-01-02 15:04:05"),
			strings.Join(md.CommandArgs, " "),
			strconv.Itoa(md.TotalOps),
			strconv.Itoa(md.FailedOps),
			strconv.Itoa(md.TotalPrograms),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Started", "Command", "Operations", "Failed", "Programs"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
}
