package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest documents into a knowledge base",
		Long: "Chunk, embed and store documents. Each file becomes one document whose path is the file name; " +
			"use - to read standard input, or --text for inline content. Already-ingested content is skipped unless --force is set.",
		RunE: runIngest,
	}

	cmd.Flags().StringP("kb", "k", "", "Knowledge base (required)")
	cmd.Flags().StringP("source", "s", "cli", "Source label stored with every chunk")
	cmd.Flags().String("text", "", "Inline document content")
	cmd.Flags().String("path", "", "Document path for --text or standard input")
	cmd.Flags().Bool("force", false, "Re-ingest content even if it was seen before")
	_ = cmd.MarkFlagRequired("kb")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	kb, _ := cmd.Flags().GetString("kb")
	source, _ := cmd.Flags().GetString("source")
	text, _ := cmd.Flags().GetString("text")
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	docs, err := readDocuments(cmd.InOrStdin(), args, text, path)
	if err != nil {
		return err
	}

	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.Ingest(cmd.Context(), kb, source, docs, force)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

func readDocuments(stdin io.Reader, files []string, text, path string) ([]core.Document, error) {
	var docs []core.Document
	if text != "" {
		docs = append(docs, core.Document{Path: path, Content: text})
	}

	for _, name := range files {
		var (
			data []byte
			err  error
		)
		docPath := name
		if name == "-" {
			data, err = io.ReadAll(stdin)
			docPath = path
		} else {
			data, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, core.NewMemoryError("ReadDocuments", err)
		}
		docs = append(docs, core.Document{Path: docPath, Content: string(data)})
	}

	if len(docs) == 0 {
		return nil, core.Errorf("ReadDocuments", core.ErrInvalidArgument, "no input: pass files, - or --text")
	}
	return docs, nil
}
