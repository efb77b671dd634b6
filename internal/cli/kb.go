package cli

import (
	"github.com/spf13/cobra"
)

func newKBCmd() *cobra.Command {
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Knowledge base management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge bases with their record counts",
		RunE:  runKBList,
	}

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBCreate,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a knowledge base and its records",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBDelete,
	}

	updateCmd := &cobra.Command{
		Use:   "update [name]",
		Short: "Change the chunking settings of a knowledge base",
		Long:  "Replace the ingestion engine of a knowledge base. Stored records are kept; later ingestions use the new settings.",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBUpdate,
	}
	updateCmd.Flags().Int("chunk-size", 0, "Chunk size in characters (default: configured)")
	updateCmd.Flags().Int("chunk-overlap", -1, "Chunk overlap in characters (default: configured)")

	kbCmd.AddCommand(listCmd, createCmd, deleteCmd, updateCmd)
	return kbCmd
}

type kbInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

func runKBList(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	rows := []kbInfo{}
	for _, name := range c.Registry().ListInstances() {
		row := kbInfo{Name: name}
		d, err := c.Registry().GetInstance(name)
		if err == nil {
			row.Count, err = d.Count(cmd.Context())
		}
		if err != nil {
			row.Error = err.Error()
		}
		rows = append(rows, row)
	}
	return printJSON(cmd, rows)
}

type statusResult struct {
	Status string `json:"status"`
	Name   string `json:"name"`
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.CreateKnowledgeBase(cmd.Context(), args[0]); err != nil {
		return err
	}
	return printJSON(cmd, statusResult{Status: "created", Name: args[0]})
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.DeleteKnowledgeBase(cmd.Context(), args[0]); err != nil {
		return err
	}
	return printJSON(cmd, statusResult{Status: "deleted", Name: args[0]})
}

func runKBUpdate(cmd *cobra.Command, args []string) error {
	size, _ := cmd.Flags().GetInt("chunk-size")
	overlap, _ := cmd.Flags().GetInt("chunk-overlap")

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if size <= 0 {
		size = c.Config().Digestor.ChunkSize
	}
	if overlap < 0 {
		overlap = c.Config().Digestor.ChunkOverlap
	}
	if err := c.UpdateKnowledgeBase(cmd.Context(), args[0], size, overlap); err != nil {
		return err
	}
	return printJSON(cmd, statusResult{Status: "updated", Name: args[0]})
}
