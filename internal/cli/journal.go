package cli

import (
	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the most recent journal entries",
		RunE:  runJournal,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max entries (0 = all)")

	return cmd
}

func runJournal(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	j := c.Journal()
	if j == nil {
		return core.Errorf("Journal", core.ErrNotConfigured, "set journal.provider or MIND_JOURNAL_PROVIDER")
	}
	entries, err := j.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*core.Entry{}
	}
	return printJSON(cmd, entries)
}
