package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trend-signals/internal/model"
)

// Reader provides read-only access to SQLite for warm-up and history queries.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadCandles returns the latest limit candles of symbol, oldest first, so
// they can be replayed in order. limit <= 0 returns every stored candle.
func (r *Reader) ReadCandles(symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close FROM (
			SELECT symbol, ts, open, high, low, close
			FROM candles
			WHERE symbol = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&c.Symbol, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Symbols returns every symbol with stored candles, sorted.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM candles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AnalysisEntry is one archived recommendation change.
type AnalysisEntry struct {
	Symbol         string    `json:"symbol"`
	TS             time.Time `json:"ts"`
	Recommendation string    `json:"recommendation"`
	Family         string    `json:"family"`
	Reason         string    `json:"reason,omitempty"`
	Score          float64   `json:"score"`
	Confidence     float64   `json:"confidence"`
	Quality        string    `json:"quality"`
}

// ReadAnalysis returns the latest limit archived recommendation changes of
// symbol, newest first.
func (r *Reader) ReadAnalysis(symbol string, limit int) ([]AnalysisEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT symbol, ts, recommendation, family, reason, score, confidence, quality
		FROM analysis_log
		WHERE symbol = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query analysis_log: %w", err)
	}
	defer rows.Close()

	var out []AnalysisEntry
	for rows.Next() {
		var e AnalysisEntry
		var tsUnix int64
		if err := rows.Scan(&e.Symbol, &tsUnix, &e.Recommendation, &e.Family, &e.Reason, &e.Score, &e.Confidence, &e.Quality); err != nil {
			return nil, fmt.Errorf("sqlite scan analysis_log: %w", err)
		}
		e.TS = time.Unix(tsUnix, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
