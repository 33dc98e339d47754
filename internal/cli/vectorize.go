package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
)

func newVectorizeCmd(load Loader) *cobra.Command {
	var (
		documentID  string
		storagePath string
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "vectorize",
		Short: "Run the pipeline synchronously for one document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := load(ctx, true)
			if err != nil {
				return err
			}
			defer b.Close()

			if storagePath == "" {
				doc, err := b.Store.GetDocumentByID(ctx, documentID)
				if err != nil {
					return err
				}
				if doc == nil {
					return fmt.Errorf("document %s not found", documentID)
				}
				storagePath = doc.StoragePath
			}

			res, err := b.Vectorizer.Vectorize(ctx, ingestion_engine.VectorizeRequest{
				DocumentID:  documentID,
				StoragePath: storagePath,
				Force:       force,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s provider=%s dimension=%d\n", res.Message, res.Provider, res.Dimension)
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "curriculum document id")
	cmd.Flags().StringVar(&storagePath, "storage-path", "", "object key; defaults to the one on the document record")
	cmd.Flags().BoolVar(&force, "force", false, "re-embed a completed document")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}
