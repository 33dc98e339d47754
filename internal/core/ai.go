package core

import "context"

// EmbeddingProvider turns a batch of texts into one vector per text, in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedding is the outcome of one embedding run over a document's chunks.
//
// Provider:  name of the chain entry that produced every vector.
// Vectors:   one vector per input chunk, same order.
// Dimension: shared length of every vector.
type Embedding struct {
	Provider  string
	Vectors   [][]float32
	Dimension int
}

// Embedder embeds a whole chunk list with a single provider.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (*Embedding, error)
}
