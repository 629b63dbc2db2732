package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"grammarrelay/internal/markdown"
	"grammarrelay/internal/panel"
)

func newHistoryCommand(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, history := o.storage()
			items, err := history.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}
			for _, it := range items {
				ts := time.UnixMilli(it.Timestamp).Local().Format("2006-01-02 15:04")
				fmt.Fprintf(out, "%s  %s  %s\n", it.ID, ts, oneLine(it.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(newHistoryShowCommand(o))

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, history := o.storage()
			if err := history.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	})
	return cmd
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func newHistoryShowCommand(o *rootOptions) *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Render a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, history := o.storage()
			items, err := history.List()
			if err != nil {
				return err
			}
			s, err := settings.Get()
			if err != nil {
				return err
			}
			format := panel.FormatTerminal
			if asHTML {
				format = panel.FormatHTML
			}
			for _, it := range items {
				if it.ID == args[0] {
					return panel.Replay(cmd.OutOrStdout(), it.Result, markdown.ThemeByName(s.Theme), format)
				}
			}
			return fmt.Errorf("no history item %q", args[0])
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the analysis as HTML")
	return cmd
}
