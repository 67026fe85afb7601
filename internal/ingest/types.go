// Package ingest fans a completed analysis artifact out to the external
// vector-embedding and graph-extraction subsystems. The two calls are
// independent: either may fail without affecting the other, and the result
// always reports both outcomes plus any errors encountered.
package ingest

import "context"

// VectorChunks describes what the vector store reported back about the
// chunks it embedded.
type VectorChunks struct {
	DocID      string
	ChunkCount int
}

// GraphUpdate describes what the graph store reported back about the
// entities/relations it extracted.
type GraphUpdate struct {
	Entities  int
	Relations int
}

// Result is C8's output: per-store success/failure plus the doc_id carried
// forward to the pipeline and to AnalysisResult. DocID is empty when the
// vector embed failed.
type Result struct {
	Vector *VectorChunks
	Graph  *GraphUpdate
	DocID  string
	Errors []string
}

// VectorEmbedder embeds an artifact's content into the vector store and
// returns a stable document identifier. The identifier is derived from the
// artifact's `_meta.id` field when present, or from the file path otherwise.
type VectorEmbedder interface {
	Embed(ctx context.Context, filepath string) (VectorChunks, error)
}

// GraphExtractor extracts entities and relations from an artifact into the
// graph store.
type GraphExtractor interface {
	Extract(ctx context.Context, filepath string) (GraphUpdate, error)
}
