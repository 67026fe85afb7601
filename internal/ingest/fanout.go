package ingest

import (
	"context"

	"github.com/rs/zerolog"
)

// Fanout performs the C8 dual-ingest operation.
type Fanout struct {
	vector VectorEmbedder
	graph  GraphExtractor
	log    zerolog.Logger
}

// New creates a Fanout. Either subsystem may be nil, in which case that
// half is always recorded as failed with a descriptive error.
func New(vector VectorEmbedder, graph GraphExtractor, log zerolog.Logger) *Fanout {
	return &Fanout{vector: vector, graph: graph, log: log.With().Str("component", "ingest").Logger()}
}

// Ingest embeds and extracts filepath concurrently. A failure in one
// sub-call is recorded in Result.Errors and does not prevent the other from
// completing; Result.DocID is empty if the vector embed failed.
func (f *Fanout) Ingest(ctx context.Context, filepath string) Result {
	var result Result

	type vectorOutcome struct {
		chunks VectorChunks
		err    error
	}
	type graphOutcome struct {
		update GraphUpdate
		err    error
	}

	vectorCh := make(chan vectorOutcome, 1)
	graphCh := make(chan graphOutcome, 1)

	go func() {
		if f.vector == nil {
			vectorCh <- vectorOutcome{err: errNilEmbedder}
			return
		}
		chunks, err := f.vector.Embed(ctx, filepath)
		vectorCh <- vectorOutcome{chunks: chunks, err: err}
	}()

	go func() {
		if f.graph == nil {
			graphCh <- graphOutcome{err: errNilExtractor}
			return
		}
		update, err := f.graph.Extract(ctx, filepath)
		graphCh <- graphOutcome{update: update, err: err}
	}()

	vOut := <-vectorCh
	gOut := <-graphCh

	if vOut.err != nil {
		f.log.Warn().Err(vOut.err).Str("filepath", filepath).Msg("vector embed failed, continuing without it")
		result.Errors = append(result.Errors, "vector: "+vOut.err.Error())
	} else {
		v := vOut.chunks
		result.Vector = &v
		result.DocID = v.DocID
	}

	if gOut.err != nil {
		f.log.Warn().Err(gOut.err).Str("filepath", filepath).Msg("graph extract failed, continuing without it")
		result.Errors = append(result.Errors, "graph: "+gOut.err.Error())
	} else {
		g := gOut.update
		result.Graph = &g
	}

	return result
}
