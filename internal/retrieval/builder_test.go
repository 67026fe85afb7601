package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeVectorStore struct {
	hits []VectorHit
	err  error
}

func (f *fakeVectorStore) Search(ctx context.Context, ticker, queryText, analysisKind string) ([]VectorHit, error) {
	return f.hits, f.err
}

type fakeGraphStore struct {
	ctx   GraphContext
	warns []BiasWarning
	recs  []StrategyRecommendation
	err   error
}

func (f *fakeGraphStore) Query(ctx context.Context, ticker string) (GraphContext, []BiasWarning, []StrategyRecommendation, error) {
	return f.ctx, f.warns, f.recs, f.err
}

type fakeEnricher struct {
	byDocID map[string]*EnrichedAnalysis
}

func (f *fakeEnricher) GetAnalysisResultByDocID(docID string) (*EnrichedAnalysis, error) {
	return f.byDocID[docID], nil
}

func TestBuild_FirstAnalysis_NoHistoryNoGraph(t *testing.T) {
	b := NewBuilder(&fakeVectorStore{}, &fakeGraphStore{ctx: GraphContext{Empty: true}}, nil, zerolog.Nop())
	hc := b.Build(context.Background(), "NVDA", "query", "stock", "")

	require.True(t, hc.IsFirstAnalysis)
	require.False(t, hc.HasHistory)
	require.False(t, hc.HasGraphData)
	require.Contains(t, hc.Formatted, "First analysis")
}

func TestBuild_VectorStoreFailureYieldsEmptyDefaults(t *testing.T) {
	b := NewBuilder(&fakeVectorStore{err: errors.New("boom")}, &fakeGraphStore{ctx: GraphContext{Peers: []string{"AMD"}}}, nil, zerolog.Nop())
	hc := b.Build(context.Background(), "NVDA", "query", "stock", "")

	require.Empty(t, hc.VectorResults)
	require.True(t, hc.HasGraphData)
	require.False(t, hc.IsFirstAnalysis)
}

func TestBuild_GraphStoreFailureYieldsEmptyDefaults(t *testing.T) {
	b := NewBuilder(&fakeVectorStore{hits: []VectorHit{{DocID: "NVDA_stock_20260101T0930", Similarity: 0.8}}}, &fakeGraphStore{err: errors.New("down")}, nil, zerolog.Nop())
	hc := b.Build(context.Background(), "NVDA", "query", "stock", "")

	require.True(t, hc.GraphContext.Empty)
	require.False(t, hc.HasGraphData)
	require.True(t, hc.HasHistory)
}

func TestBuild_ExcludesDocIDAndOrdersDeterministically(t *testing.T) {
	hits := []VectorHit{
		{DocID: "NVDA_stock_20260101T0930", Similarity: 0.5, DocDate: "2026-01-01"},
		{DocID: "NVDA_stock_20260102T0930", Similarity: 0.5, DocDate: "2026-01-02"},
		{DocID: "EXCLUDE_ME", Similarity: 0.9, DocDate: "2026-01-03"},
		{DocID: "NVDA_stock_20260103T0930", Similarity: 0.7, DocDate: "2026-01-03"},
	}
	b := NewBuilder(&fakeVectorStore{hits: hits}, &fakeGraphStore{ctx: GraphContext{Empty: true}}, nil, zerolog.Nop())
	hc := b.Build(context.Background(), "NVDA", "query", "stock", "EXCLUDE_ME")

	require.Len(t, hc.VectorResults, 3)
	require.Equal(t, "NVDA_stock_20260103T0930", hc.VectorResults[0].DocID, "highest similarity first")
	require.Equal(t, "NVDA_stock_20260102T0930", hc.VectorResults[1].DocID, "tie on similarity breaks on doc_date descending")
	require.Equal(t, "NVDA_stock_20260101T0930", hc.VectorResults[2].DocID)
}

func TestBuild_EnrichesKnownDocIDs(t *testing.T) {
	hits := []VectorHit{{DocID: "NVDA_stock_20260101T0930", Similarity: 0.6}}
	enricher := &fakeEnricher{byDocID: map[string]*EnrichedAnalysis{
		"NVDA_stock_20260101T0930": {Recommendation: "BUY", Confidence: 72},
	}}
	b := NewBuilder(&fakeVectorStore{hits: hits}, &fakeGraphStore{ctx: GraphContext{Empty: true}}, enricher, zerolog.Nop())
	hc := b.Build(context.Background(), "NVDA", "query", "stock", "")

	require.Equal(t, "BUY", hc.VectorResults[0].Recommendation)
	require.Equal(t, "72", hc.VectorResults[0].Confidence)
	require.Equal(t, "2026-01-01T09:30", hc.VectorResults[0].AnalysisDate)
}

func TestBuild_UnenrichableDocIDYieldsNA(t *testing.T) {
	hits := []VectorHit{{DocID: "unparseable-doc-id", Similarity: 0.6}}
	b := NewBuilder(&fakeVectorStore{hits: hits}, &fakeGraphStore{ctx: GraphContext{Empty: true}}, &fakeEnricher{}, zerolog.Nop())
	hc := b.Build(context.Background(), "NVDA", "query", "stock", "")

	require.Equal(t, "N/A", hc.VectorResults[0].Recommendation)
	require.Equal(t, "N/A", hc.VectorResults[0].Confidence)
	require.Equal(t, "N/A", hc.VectorResults[0].AnalysisDate)
}

func TestFormat_IsDeterministic(t *testing.T) {
	hc := &HybridContext{
		GraphContext: GraphContext{Peers: []string{"AMD", "INTC"}},
		BiasWarnings: []BiasWarning{{Bias: "loss-aversion", Occurrences: 2, LastImpact: "overweighted stop"}},
	}
	hc.Formatted = Format(hc)

	first := Format(hc)
	second := Format(hc)
	require.Equal(t, first, second)
	require.Contains(t, first, "Peers: AMD, INTC")
	require.Contains(t, first, "loss-aversion")
}
