package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(load Loader) *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show processing status and stored vector count for a document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := load(ctx, false)
			if err != nil {
				return err
			}
			defer b.Close()

			doc, err := b.Store.GetDocumentByID(ctx, documentID)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("document %s not found", documentID)
			}
			n, err := b.Store.CountDocumentVectors(ctx, documentID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "document:  %s (%s)\n", doc.ID, doc.FileName)
			fmt.Fprintf(out, "status:    %s\n", doc.Status)
			fmt.Fprintf(out, "chunks:    %d\n", doc.ChunkCount)
			fmt.Fprintf(out, "vectors:   %d\n", n)
			if doc.EmbeddingProvider != nil {
				fmt.Fprintf(out, "provider:  %s\n", *doc.EmbeddingProvider)
			}
			if doc.ErrorMessage != nil {
				fmt.Fprintf(out, "error:     %s\n", *doc.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "curriculum document id")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}
