package cli

import (
	"github.com/spf13/cobra"
)

func newScratchCmd() *cobra.Command {
	scratchCmd := &cobra.Command{
		Use:   "scratch",
		Short: "Working memory scratchpad",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List working entries, oldest first",
		RunE:  runScratchList,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every working entry",
		RunE:  runScratchClear,
	}

	commitCmd := &cobra.Command{
		Use:   "commit",
		Short: "Journal the working entries as one summary entry and empty the scratchpad",
		RunE:  runScratchCommit,
	}

	scratchCmd.AddCommand(listCmd, clearCmd, commitCmd)
	return scratchCmd
}

func runScratchList(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	return printJSON(cmd, c.Layers().Working.List())
}

type clearResult struct {
	Cleared int `json:"cleared"`
}

func runScratchClear(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.ClearScratch(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, clearResult{Cleared: n})
}

func runScratchCommit(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	entry, err := c.CommitScratch(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, entry)
}
