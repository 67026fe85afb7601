package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

const analysisResultColumns = `run_id, ticker, analysis_kind, gate_passed, recommendation, confidence,
	adjusted_confidence, confidence_modifiers, expected_value_pct, entry_price, stop_price, target_price,
	position_size_pct, trade_structure, expiry, strikes, rationale, snapshot_price, implied_volatility,
	doc_id, doc_date, created_at`

// AnalysisRepository owns the analysis_results table.
type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository creates a repository over db.
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// SaveAnalysisResult persists the structured parse of a completed run's
// artifact. confidence_modifiers is stored as an empty JSON object until
// UpdateAnalysisConfidence records the synthesis-phase adjustment.
func (r *AnalysisRepository) SaveAnalysisResult(a AnalysisResult) error {
	if a.DocDate.IsZero() {
		a.DocDate = time.Now().UTC()
	}
	modifiers := a.ConfidenceModifiers
	if modifiers == nil {
		modifiers = map[string]int{}
	}
	modifiersJSON, err := json.Marshal(modifiers)
	if err != nil {
		return classify("save_analysis_result", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO analysis_results (run_id, ticker, analysis_kind, gate_passed, recommendation, confidence,
			adjusted_confidence, confidence_modifiers, expected_value_pct, entry_price, stop_price, target_price,
			position_size_pct, trade_structure, expiry, strikes, rationale, snapshot_price, implied_volatility,
			doc_id, doc_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			gate_passed = excluded.gate_passed,
			recommendation = excluded.recommendation,
			confidence = excluded.confidence,
			expected_value_pct = excluded.expected_value_pct,
			entry_price = excluded.entry_price,
			stop_price = excluded.stop_price,
			target_price = excluded.target_price,
			position_size_pct = excluded.position_size_pct,
			trade_structure = excluded.trade_structure,
			expiry = excluded.expiry,
			strikes = excluded.strikes,
			rationale = excluded.rationale,
			snapshot_price = excluded.snapshot_price,
			implied_volatility = excluded.implied_volatility,
			doc_id = excluded.doc_id`,
		a.RunID, a.Ticker, a.AnalysisKind, a.GatePassed, a.Recommendation, a.Confidence,
		a.AdjustedConfidence, string(modifiersJSON), a.ExpectedValuePct, a.EntryPrice, a.StopPrice, a.TargetPrice,
		a.PositionSizePct, a.TradeStructure, a.Expiry, a.Strikes, a.Rationale, a.SnapshotPrice, a.ImpliedVolatility,
		a.DocID, a.DocDate, time.Now().UTC(),
	)
	return classify("save_analysis_result", err)
}

// UpdateAnalysisConfidence records the synthesis phase's adjusted confidence
// and the named modifiers that produced it. adjusted must already be
// clamped to [0, 100] by the caller.
func (r *AnalysisRepository) UpdateAnalysisConfidence(runID int64, adjusted int, modifiers map[string]int) error {
	modifiersJSON, err := json.Marshal(modifiers)
	if err != nil {
		return classify("update_analysis_confidence", err)
	}

	_, err = r.db.Exec(`
		UPDATE analysis_results SET adjusted_confidence = ?, confidence_modifiers = ?
		WHERE run_id = ?`,
		adjusted, string(modifiersJSON), runID,
	)
	return classify("update_analysis_confidence", err)
}

// GetAnalysisResult returns the analysis result for run_id, or nil if none
// has been saved yet.
func (r *AnalysisRepository) GetAnalysisResult(runID int64) (*AnalysisResult, error) {
	row := r.db.QueryRow(`SELECT `+analysisResultColumns+` FROM analysis_results WHERE run_id = ?`, runID)
	a, err := scanAnalysisResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_analysis_result", err)
	}
	return a, nil
}

// GetAnalysisResultByDocID returns the analysis result carrying the given
// vector doc_id, or nil if no row references it. Used by the retrieval
// context builder to enrich vector hits with recommendation/confidence.
func (r *AnalysisRepository) GetAnalysisResultByDocID(docID string) (*AnalysisResult, error) {
	row := r.db.QueryRow(`SELECT `+analysisResultColumns+` FROM analysis_results WHERE doc_id = ?`, docID)
	a, err := scanAnalysisResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_analysis_result_by_doc_id", err)
	}
	return a, nil
}

// PatternHistory returns past analysis results for ticker/analysisKind,
// ordered by doc_date descending then run_id descending, excluding
// excludeRunID (the run currently being synthesized). limit bounds the
// result count.
func (r *AnalysisRepository) PatternHistory(ticker, analysisKind string, excludeRunID int64, limit int) ([]AnalysisResult, error) {
	rows, err := r.db.Query(`
		SELECT `+analysisResultColumns+` FROM analysis_results
		WHERE ticker = ? AND analysis_kind = ? AND run_id != ?
		ORDER BY doc_date DESC, run_id DESC
		LIMIT ?`,
		ticker, analysisKind, excludeRunID, limit,
	)
	if err != nil {
		return nil, classify("pattern_history", err)
	}
	defer rows.Close()

	var out []AnalysisResult
	for rows.Next() {
		a, err := scanAnalysisResult(rows)
		if err != nil {
			return nil, classify("pattern_history", err)
		}
		out = append(out, *a)
	}
	return out, classify("pattern_history", rows.Err())
}

func scanAnalysisResult(row rowScanner) (*AnalysisResult, error) {
	var a AnalysisResult
	var adjustedConfidence sql.NullInt64
	var modifiersJSON string
	var entryPrice, stopPrice, targetPrice, positionSizePct, snapshotPrice, impliedVolatility sql.NullFloat64
	var tradeStructure, expiry, strikes, docID sql.NullString
	var createdAt time.Time

	err := row.Scan(
		&a.RunID, &a.Ticker, &a.AnalysisKind, &a.GatePassed, &a.Recommendation, &a.Confidence,
		&adjustedConfidence, &modifiersJSON, &a.ExpectedValuePct, &entryPrice, &stopPrice, &targetPrice,
		&positionSizePct, &tradeStructure, &expiry, &strikes, &a.Rationale, &snapshotPrice, &impliedVolatility,
		&docID, &a.DocDate, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if adjustedConfidence.Valid {
		v := int(adjustedConfidence.Int64)
		a.AdjustedConfidence = &v
	}
	_ = json.Unmarshal([]byte(modifiersJSON), &a.ConfidenceModifiers)

	assignFloat := func(dst **float64, src sql.NullFloat64) {
		if src.Valid {
			v := src.Float64
			*dst = &v
		}
	}
	assignFloat(&a.EntryPrice, entryPrice)
	assignFloat(&a.StopPrice, stopPrice)
	assignFloat(&a.TargetPrice, targetPrice)
	assignFloat(&a.PositionSizePct, positionSizePct)
	assignFloat(&a.SnapshotPrice, snapshotPrice)
	assignFloat(&a.ImpliedVolatility, impliedVolatility)

	if tradeStructure.Valid {
		a.TradeStructure = &tradeStructure.String
	}
	if expiry.Valid {
		a.Expiry = &expiry.String
	}
	if strikes.Valid {
		a.Strikes = &strikes.String
	}
	if docID.Valid {
		a.DocID = &docID.String
	}
	a.CreatedAt = createdAt

	return &a, nil
}
