package cli

import (
	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete stored chunks by metadata",
		Long: "Delete every chunk matching all given filters from a knowledge base (--kb) or from every member of a group (--group). " +
			"Deleted documents can be ingested again.",
		RunE: runDelete,
	}

	cmd.Flags().StringP("kb", "k", "", "Knowledge base")
	cmd.Flags().StringP("group", "g", "", "Group")
	cmd.Flags().String("path", "", "Match document path")
	cmd.Flags().String("source", "", "Match source label")
	cmd.Flags().String("hash", "", "Match content hash")
	cmd.MarkFlagsOneRequired("kb", "group")
	cmd.MarkFlagsMutuallyExclusive("kb", "group")

	return cmd
}

type deleteResult struct {
	Deleted int `json:"deleted"`
}

func runDelete(cmd *cobra.Command, _ []string) error {
	kb, _ := cmd.Flags().GetString("kb")
	group, _ := cmd.Flags().GetString("group")

	filters := map[string]interface{}{}
	for flag, key := range map[string]string{
		"path":   storage.KeyPath,
		"source": storage.KeySource,
		"hash":   storage.KeyContentHash,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			filters[key] = v
		}
	}
	if len(filters) == 0 {
		return core.Errorf("Delete", core.ErrInvalidArgument, "at least one of --path, --source or --hash is required")
	}

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	var n int
	if group != "" {
		n, err = c.Registry().DeleteGroupDocuments(cmd.Context(), group, filters)
	} else {
		n, err = c.Registry().DeleteDocuments(cmd.Context(), kb, filters)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, deleteResult{Deleted: n})
}
