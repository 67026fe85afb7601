package ingest

import "errors"

var (
	errNilEmbedder  = errors.New("no vector embedder configured")
	errNilExtractor = errors.New("no graph extractor configured")
)
