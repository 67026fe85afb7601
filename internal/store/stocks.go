package store

import (
	"database/sql"
	"strings"
	"time"
)

// stockColumns lists the stocks table's columns explicitly, in schema
// order, so a future column addition can't silently shift a scan.
const stockColumns = `ticker, display_name, sector, enabled, state, default_kind, priority,
	next_earnings_date, earnings_confirmed, has_open_position, max_position_pct,
	tags, notes, expires_at, archived, created_at, updated_at`

// StockRepository owns the stocks table.
type StockRepository struct {
	db *sql.DB
}

// NewStockRepository creates a repository over db.
func NewStockRepository(db *sql.DB) *StockRepository {
	return &StockRepository{db: db}
}

// UpsertStock inserts a stock or updates it in place if ticker already
// exists. Ticker is normalized to upper-case.
func (r *StockRepository) UpsertStock(s Stock) error {
	ticker := strings.ToUpper(strings.TrimSpace(s.Ticker))
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO stocks (ticker, display_name, sector, enabled, state, default_kind, priority,
			next_earnings_date, earnings_confirmed, has_open_position, max_position_pct,
			tags, notes, expires_at, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			display_name = excluded.display_name,
			sector = excluded.sector,
			enabled = excluded.enabled,
			state = excluded.state,
			default_kind = excluded.default_kind,
			priority = excluded.priority,
			next_earnings_date = excluded.next_earnings_date,
			earnings_confirmed = excluded.earnings_confirmed,
			has_open_position = excluded.has_open_position,
			max_position_pct = excluded.max_position_pct,
			tags = excluded.tags,
			notes = excluded.notes,
			expires_at = excluded.expires_at,
			archived = excluded.archived,
			updated_at = excluded.updated_at`,
		ticker, s.DisplayName, s.Sector, s.Enabled, s.State, s.DefaultKind, clamp(s.Priority, 1, 10),
		nullableTime(s.NextEarningsDate), s.EarningsConfirmed, s.HasOpenPosition, s.MaxPositionPct,
		strings.Join(s.Tags, ","), s.Notes, nullableTime(s.ExpiresAt), s.Archived, now, now,
	)
	return classify("upsert_stock", err)
}

// GetStock returns the stock for ticker, or nil if it doesn't exist.
func (r *StockRepository) GetStock(ticker string) (*Stock, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	row := r.db.QueryRow(`SELECT `+stockColumns+` FROM stocks WHERE ticker = ?`, ticker)
	s, err := scanStock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_stock", err)
	}
	return s, nil
}

// ListEnabledStocks returns enabled, non-archived stocks ordered by priority
// descending, then ticker ascending.
func (r *StockRepository) ListEnabledStocks() ([]Stock, error) {
	rows, err := r.db.Query(`SELECT ` + stockColumns + ` FROM stocks
		WHERE enabled = 1 AND archived = 0
		ORDER BY priority DESC, ticker ASC`)
	if err != nil {
		return nil, classify("list_enabled_stocks", err)
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, classify("list_enabled_stocks", err)
		}
		out = append(out, *s)
	}
	return out, classify("list_enabled_stocks", rows.Err())
}

// DisableStock flips enabled to false for ticker.
func (r *StockRepository) DisableStock(ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	_, err := r.db.Exec(`UPDATE stocks SET enabled = 0, updated_at = ? WHERE ticker = ?`,
		time.Now().UTC(), ticker)
	return classify("disable_stock", err)
}

// SetState updates a stock's state (analysis/paper/live). state is a
// display-only value for "live" — the pipeline refuses to place real orders
// regardless of what this column holds.
func (r *StockRepository) SetState(ticker, state string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	_, err := r.db.Exec(`UPDATE stocks SET state = ?, updated_at = ? WHERE ticker = ?`,
		state, time.Now().UTC(), ticker)
	return classify("set_stock_state", err)
}

// ArchiveStock soft-removes a stock from the active watchlist: archived
// stocks are excluded from ListEnabledStocks but kept for audit and for any
// Run rows that still reference them. A stock is never hard-deleted.
func (r *StockRepository) ArchiveStock(ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	_, err := r.db.Exec(`UPDATE stocks SET archived = 1, enabled = 0, updated_at = ? WHERE ticker = ?`,
		time.Now().UTC(), ticker)
	return classify("archive_stock", err)
}

// ArchiveExpired archives every non-archived stock whose expires_at has
// passed now, and returns how many rows were affected. Used by the
// watchlist manager's periodic expiry sweep.
func (r *StockRepository) ArchiveExpired(now time.Time) (int, error) {
	res, err := r.db.Exec(`
		UPDATE stocks SET archived = 1, enabled = 0, updated_at = ?
		WHERE archived = 0 AND expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC(), now.UTC())
	if err != nil {
		return 0, classify("archive_expired_stocks", err)
	}
	n, err := res.RowsAffected()
	return int(n), classify("archive_expired_stocks", err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStock(row rowScanner) (*Stock, error) {
	var s Stock
	var tags string
	var nextEarnings, expiresAt sql.NullTime
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&s.Ticker, &s.DisplayName, &s.Sector, &s.Enabled, &s.State, &s.DefaultKind, &s.Priority,
		&nextEarnings, &s.EarningsConfirmed, &s.HasOpenPosition, &s.MaxPositionPct,
		&tags, &s.Notes, &expiresAt, &s.Archived, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tags != "" {
		s.Tags = strings.Split(tags, ",")
	}
	if nextEarnings.Valid {
		s.NextEarningsDate = &nextEarnings.Time
	}
	if expiresAt.Valid {
		s.ExpiresAt = &expiresAt.Time
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt

	return &s, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// clamp restricts v to [lo, hi], shared by any column whose invariant is a
// bounded range (stocks.priority, schedules.priority).
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
