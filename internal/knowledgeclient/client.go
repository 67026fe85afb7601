// Package knowledgeclient implements the HTTP bindings for the two external
// subsystems the retrieval and ingest packages consume only through small
// interfaces: the vector similarity store and the structural graph store.
// Neither store's wire format or storage engine is part of this system —
// spec.md treats both as "used, not defined" — so these clients speak a
// generic JSON-over-HTTP contract against a configured base URL, the same
// microservice-client shape the teacher uses for its Python side-car
// services (baseURL + *http.Client + post/get helpers, one struct per
// service).
package knowledgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quietridge/analystd/internal/ingest"
	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/rs/zerolog"
)

// VectorStoreClient calls the external similarity-search subsystem. It
// implements both retrieval.VectorStore (Search) and ingest.VectorEmbedder
// (Embed).
type VectorStoreClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewVectorStoreClient creates a VectorStoreClient. An empty baseURL is
// valid: every call then fails fast with a clear error, which callers
// (retrieval.Builder, ingest.Fanout) already treat as a degraded-but-
// continuing outcome rather than a fatal one.
func NewVectorStoreClient(baseURL string, timeout time.Duration, log zerolog.Logger) *VectorStoreClient {
	return &VectorStoreClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "vector_store").Logger(),
	}
}

type vectorSearchRequest struct {
	Ticker       string `json:"ticker"`
	Query        string `json:"query"`
	AnalysisKind string `json:"analysis_kind"`
}

type vectorSearchResponse struct {
	Results []retrieval.VectorHit `json:"results"`
}

// Search satisfies retrieval.VectorStore.
func (c *VectorStoreClient) Search(ctx context.Context, ticker, queryText, analysisKind string) ([]retrieval.VectorHit, error) {
	var out vectorSearchResponse
	if err := c.postJSON(ctx, "/search", vectorSearchRequest{
		Ticker: ticker, Query: queryText, AnalysisKind: analysisKind,
	}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

type vectorEmbedRequest struct {
	FilePath string `json:"file_path"`
}

type vectorEmbedResponse struct {
	DocID      string `json:"doc_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Embed satisfies ingest.VectorEmbedder.
func (c *VectorStoreClient) Embed(ctx context.Context, filepath string) (ingest.VectorChunks, error) {
	var out vectorEmbedResponse
	if err := c.postJSON(ctx, "/embed", vectorEmbedRequest{FilePath: filepath}, &out); err != nil {
		return ingest.VectorChunks{}, err
	}
	return ingest.VectorChunks{DocID: out.DocID, ChunkCount: out.ChunkCount}, nil
}

func (c *VectorStoreClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	return postJSON(ctx, c.http, c.baseURL+path, body, out)
}

// GraphStoreClient calls the external structural-graph subsystem. It
// implements both retrieval.GraphStore (Query) and ingest.GraphExtractor
// (Extract).
type GraphStoreClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewGraphStoreClient creates a GraphStoreClient.
func NewGraphStoreClient(baseURL string, timeout time.Duration, log zerolog.Logger) *GraphStoreClient {
	return &GraphStoreClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "graph_store").Logger(),
	}
}

type graphQueryResponse struct {
	Context                 retrieval.GraphContext              `json:"context"`
	BiasWarnings            []retrieval.BiasWarning              `json:"bias_warnings"`
	StrategyRecommendations []retrieval.StrategyRecommendation   `json:"strategy_recommendations"`
}

// Query satisfies retrieval.GraphStore.
func (c *GraphStoreClient) Query(ctx context.Context, ticker string) (retrieval.GraphContext, []retrieval.BiasWarning, []retrieval.StrategyRecommendation, error) {
	var out graphQueryResponse
	url := fmt.Sprintf("%s/query?ticker=%s", c.baseURL, ticker)
	if err := getJSON(ctx, c.http, url, &out); err != nil {
		return retrieval.GraphContext{Empty: true}, nil, nil, err
	}
	return out.Context, out.BiasWarnings, out.StrategyRecommendations, nil
}

type graphExtractRequest struct {
	FilePath string `json:"file_path"`
}

type graphExtractResponse struct {
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
}

// Extract satisfies ingest.GraphExtractor.
func (c *GraphStoreClient) Extract(ctx context.Context, filepath string) (ingest.GraphUpdate, error) {
	var out graphExtractResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/extract", graphExtractRequest{FilePath: filepath}, &out); err != nil {
		return ingest.GraphUpdate{}, err
	}
	return ingest.GraphUpdate{Entities: out.Entities, Relations: out.Relations}, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doJSON(client, req, out)
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return doJSON(client, req, out)
}

func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
