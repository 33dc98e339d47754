package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/learnbridge/internal/app"
	db "github.com/markdave123-py/learnbridge/internal/core/database"
	"github.com/markdave123-py/learnbridge/internal/core/ingestion_engine"
	"github.com/markdave123-py/learnbridge/internal/models"
)

// DocumentStore is the read side vectorctl needs.
type DocumentStore interface {
	GetDocumentByID(ctx context.Context, id string) (*models.CurriculumDocument, error)
	CountDocumentVectors(ctx context.Context, documentID string) (int, error)
}

// Backend is what the subcommands run against.
type Backend struct {
	Store      DocumentStore
	Vectorizer ingestion_engine.Vectorizer // nil when only the store was opened
	Close      func()
}

// Loader opens a backend; withPipeline also builds the object store, extractor and provider chain.
type Loader func(ctx context.Context, withPipeline bool) (*Backend, error)

// NewRootCmd constructs the root command with all subcommands attached.
func NewRootCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectorctl",
		Short: "vectorctl - run and inspect curriculum vectorization",
		Long:  "vectorctl runs the extract, chunk, embed and store pipeline for one curriculum document and reports document status.",
	}
	cmd.SilenceUsage = true
	cmd.AddCommand(newVectorizeCmd(load))
	cmd.AddCommand(newStatusCmd(load))
	return cmd
}

// Execute runs the CLI entrypoint against the configured stack.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(defaultLoader).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultLoader(ctx context.Context, withPipeline bool) (*Backend, error) {
	cfg, logger, err := app.LoadRuntime()
	if err != nil {
		return nil, err
	}

	if !withPipeline {
		client, err := db.NewDatabaseClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: client, Close: func() { _ = client.Close(); _ = logger.Sync() }}, nil
	}

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Store:      a.DBClient,
		Vectorizer: a.Pipeline,
		Close:      func() { a.Close(); _ = logger.Sync() },
	}, nil
}
