package cli

import (
	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/layers"
)

func newRememberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remember [text]",
		Short: "Commit a conversation turn to working memory",
		Long: "Append a turn to the working tier. Once the tier reaches the flush threshold it is summarized into long-term memory. " +
			"Turns survive between invocations only when a journal is configured.",
		Args: cobra.MinimumNArgs(1),
		RunE: runRemember,
	}

	cmd.Flags().StringToString("meta", nil, "Metadata as key=value pairs")
	cmd.Flags().String("type", core.EntryTypeUserInteraction, "Entry type")

	return cmd
}

type rememberResult struct {
	Entry   *core.Entry `json:"entry"`
	Flushed bool        `json:"flushed"`
	Summary string      `json:"summary,omitempty"`
}

func runRemember(cmd *cobra.Command, args []string) error {
	meta, _ := cmd.Flags().GetStringToString("meta")
	entryType, _ := cmd.Flags().GetString("type")

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	var metadata map[string]interface{}
	if len(meta) > 0 {
		metadata = make(map[string]interface{}, len(meta))
		for k, v := range meta {
			metadata[k] = v
		}
	}

	entry := core.NewEntry(entryType, joinArgs(args), core.WithEntryMetadata(metadata))
	summary, flushed := c.Layers().CommitTurn(cmd.Context(), entry)
	return printJSON(cmd, rememberResult{Entry: entry, Flushed: flushed, Summary: summary})
}

func newRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall [text]",
		Short: "Query working and long-term memory",
		Long:  "Return the most recent working entries followed by the closest long-term summaries.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRecall,
	}

	cmd.Flags().Int("k-work", layers.DefaultKWork, "Recent working entries to include")
	cmd.Flags().Int("k-long", layers.DefaultKLong, "Long-term results to include")

	return cmd
}

func runRecall(cmd *cobra.Command, args []string) error {
	kWork, _ := cmd.Flags().GetInt("k-work")
	kLong, _ := cmd.Flags().GetInt("k-long")

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	return printJSON(cmd, c.Recall(cmd.Context(), joinArgs(args), kWork, kLong))
}

func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Summarize working memory into long-term memory now",
		RunE:  runFlush,
	}
}

type flushResult struct {
	Flushed bool   `json:"flushed"`
	Summary string `json:"summary,omitempty"`
}

func runFlush(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	summary, flushed := c.Flush(cmd.Context())
	return printJSON(cmd, flushResult{Flushed: flushed, Summary: summary})
}
