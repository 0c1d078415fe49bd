package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"queuelab/internal/report"
	"queuelab/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(viper.GetViper())
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.List()
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), items)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the report of a recorded run (an ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(viper.GetViper())
		if err != nil {
			return err
		}
		defer store.Close()

		item, err := store.Get(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run %s (%s)\n", item.ID, item.Timestamp.Format(time.DateTime))
		return report.Render(w, item.Snapshot)
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
}

// openHistory opens --history, falling back to the default location.
func openHistory(v *viper.Viper) (*storage.Store, error) {
	path := v.GetString("history")
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return storage.Open(path)
}

func printHistory(w io.Writer, items []storage.HistoryItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TIME", "STAGES", "GENERATED", "ADMITTED", "DROPPED", "COMPLETED", "P99 MS")
	for _, it := range items {
		t.Row(
			it.ID,
			it.Timestamp.Format(time.DateTime),
			fmt.Sprintf("%d", len(it.Config.Stages)),
			fmt.Sprintf("%d", it.Summary.Generated),
			fmt.Sprintf("%d", it.Summary.Admitted),
			fmt.Sprintf("%d", it.Summary.Dropped),
			fmt.Sprintf("%d", it.Summary.Completed),
			fmt.Sprintf("%.1f", it.Summary.P99SojournMs),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
