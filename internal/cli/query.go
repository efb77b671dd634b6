package cli

import (
	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/digestor"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Search one knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}

	cmd.Flags().StringP("kb", "k", "", "Knowledge base (required)")
	cmd.Flags().IntP("limit", "l", digestor.DefaultK, "Max results")
	_ = cmd.MarkFlagRequired("kb")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	kb, _ := cmd.Flags().GetString("kb")
	limit, _ := cmd.Flags().GetInt("limit")

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	results, err := c.Query(cmd.Context(), kb, joinArgs(args), limit)
	if err != nil {
		return err
	}
	return printJSON(cmd, results)
}
