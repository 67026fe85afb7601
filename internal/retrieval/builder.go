package retrieval

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/quietridge/analystd/internal/store"
	"github.com/rs/zerolog"
)

// StoreEnricher adapts a store.AnalysisRepository to the Enricher interface.
type StoreEnricher struct {
	repo *store.AnalysisRepository
}

// NewStoreEnricher wraps repo for use as a Builder's Enricher.
func NewStoreEnricher(repo *store.AnalysisRepository) *StoreEnricher {
	return &StoreEnricher{repo: repo}
}

// GetAnalysisResultByDocID implements Enricher.
func (e *StoreEnricher) GetAnalysisResultByDocID(docID string) (*EnrichedAnalysis, error) {
	a, err := e.repo.GetAnalysisResultByDocID(docID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	return &EnrichedAnalysis{
		Recommendation: a.Recommendation,
		Confidence:     a.Confidence,
	}, nil
}

func itoa(n int) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// docIDDatePattern extracts the YYYYMMDDThhmm timestamp embedded in a
// doc_id of the form <TICKER>_<KIND>_<YYYYMMDDThhmm>.
var docIDDatePattern = regexp.MustCompile(`_(\d{8}T\d{4})$`)

// Builder constructs HybridContext values from a vector store, a graph
// store, and an enricher over persisted AnalysisResults.
type Builder struct {
	vector   VectorStore
	graph    GraphStore
	enricher Enricher
	log      zerolog.Logger
}

// NewBuilder creates a Builder. vector and graph may individually be nil,
// in which case that half of the context is always empty (equivalent to the
// store being permanently unreachable).
func NewBuilder(vector VectorStore, graph GraphStore, enricher Enricher, log zerolog.Logger) *Builder {
	return &Builder{vector: vector, graph: graph, enricher: enricher, log: log.With().Str("component", "retrieval").Logger()}
}

// Build assembles a HybridContext for ticker given queryText, excluding
// excludeDocID from the vector results (the artifact currently being
// synthesized, so it can't reference itself as history). Vector and graph
// calls run concurrently; either's failure yields that half's empty
// default rather than aborting the build.
func (b *Builder) Build(ctx context.Context, ticker, queryText, analysisKind, excludeDocID string) *HybridContext {
	var vectorResults []VectorHit
	var graphCtx GraphContext
	var biasWarnings []BiasWarning
	var strategyRecs []StrategyRecommendation

	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		if b.vector == nil {
			return
		}
		hits, err := b.vector.Search(ctx, ticker, queryText, analysisKind)
		if err != nil {
			b.log.Warn().Err(err).Str("ticker", ticker).Msg("vector store search failed, continuing without it")
			return
		}
		vectorResults = hits
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		if b.graph == nil {
			graphCtx = GraphContext{Empty: true}
			return
		}
		gc, warnings, recs, err := b.graph.Query(ctx, ticker)
		if err != nil {
			b.log.Warn().Err(err).Str("ticker", ticker).Msg("graph store query failed, continuing without it")
			graphCtx = GraphContext{Empty: true}
			return
		}
		graphCtx = gc
		biasWarnings = warnings
		strategyRecs = recs
	}()

	<-done
	<-done

	vectorResults = filterAndSort(vectorResults, excludeDocID)
	vectorResults = b.enrich(vectorResults)

	hasHistory := len(vectorResults) > 0
	hasGraphData := len(graphCtx.Peers) > 0 || len(graphCtx.Risks) > 0

	hc := &HybridContext{
		VectorResults:           vectorResults,
		GraphContext:            graphCtx,
		BiasWarnings:            biasWarnings,
		StrategyRecommendations: strategyRecs,
		HasHistory:              hasHistory,
		HistoryCount:            len(vectorResults),
		HasGraphData:            hasGraphData,
		IsFirstAnalysis:         !hasHistory && !hasGraphData,
	}
	hc.Formatted = Format(hc)
	return hc
}

// filterAndSort removes excludeDocID and orders by similarity descending,
// breaking ties by doc_date descending then doc_id lexicographically.
func filterAndSort(hits []VectorHit, excludeDocID string) []VectorHit {
	out := make([]VectorHit, 0, len(hits))
	for _, h := range hits {
		if excludeDocID != "" && h.DocID == excludeDocID {
			continue
		}
		out = append(out, h)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].DocDate != out[j].DocDate {
			return out[i].DocDate > out[j].DocDate
		}
		return out[i].DocID < out[j].DocID
	})

	return out
}

// enrich attaches recommendation/confidence/date to every hit by joining
// with persisted AnalysisResults. Absence of a match (or no enricher
// configured) yields "N/A" — never an error.
func (b *Builder) enrich(hits []VectorHit) []VectorHit {
	for i := range hits {
		hits[i].Recommendation = "N/A"
		hits[i].Confidence = "N/A"
		hits[i].AnalysisDate = dateFromDocID(hits[i].DocID)

		if b.enricher == nil {
			continue
		}
		result, err := b.enricher.GetAnalysisResultByDocID(hits[i].DocID)
		if err != nil || result == nil {
			continue
		}
		hits[i].Recommendation = result.Recommendation
		hits[i].Confidence = itoa(result.Confidence)
	}
	return hits
}

func dateFromDocID(docID string) string {
	m := docIDDatePattern.FindStringSubmatch(docID)
	if m == nil {
		return "N/A"
	}
	t, err := time.Parse("20060102T1504", m[1])
	if err != nil {
		return "N/A"
	}
	return t.Format("2006-01-02T15:04")
}
