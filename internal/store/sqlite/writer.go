package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trend-signals/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/candles.db"
	Logger *slog.Logger
}

// Writer is a single-goroutine SQLite writer with transaction batching. It
// archives incoming candles (the warm-up source for the next start) and
// recommendation changes.
type Writer struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("sqlite opened", "path", cfg.DBPath)
	return &Writer{db: db, log: log}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS analysis_log (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			recommendation TEXT    NOT NULL,
			family         TEXT    NOT NULL,
			reason         TEXT    NOT NULL,
			score          REAL    NOT NULL,
			confidence     REAL    NOT NULL,
			quality        TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS analysis_log_symbol_ts ON analysis_log (symbol, ts);
	`)
	return err
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every batchSize candles OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	runBatched(ctx, candleCh, w.insertCandles, w.log, "candles")
}

// RunAnalysis archives analysis records whose recommendation differs from
// the previous archived record of the same symbol.
func (w *Writer) RunAnalysis(ctx context.Context, recCh <-chan model.TrendAnalysis) {
	last := make(map[string]model.Recommendation)
	changed := make(chan model.TrendAnalysis, defaultBatchSize)
	go func() {
		defer close(changed)
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-recCh:
				if !ok {
					return
				}
				if prev, seen := last[rec.Symbol]; seen && prev == rec.Recommendation {
					continue
				}
				last[rec.Symbol] = rec.Recommendation
				select {
				case changed <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	runBatched(context.Background(), changed, w.insertAnalysis, w.log, "analysis")
}

// runBatched drains in and commits batches until in closes or ctx ends.
func runBatched[T any](ctx context.Context, in <-chan T, insert func([]T) error, log *slog.Logger, what string) {
	batch := make([]T, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := insert(batch); err != nil {
			log.Error("sqlite batch insert failed", "table", what, "rows", len(batch), "err", err)
		} else {
			log.Debug("sqlite batch committed", "table", what, "rows", len(batch), "took", time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case v, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, v)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertCandles writes candles in one transaction. Re-inserting a
// (symbol, ts) pair replaces the stored bar.
func (w *Writer) InsertCandles(candles []model.Candle) error {
	return w.insertCandles(candles)
}

func (w *Writer) insertCandles(candles []model.Candle) error {
	return w.inTx(`
		INSERT OR REPLACE INTO candles (symbol, ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)
	`, len(candles), func(stmt *sql.Stmt, i int) error {
		c := candles[i]
		_, err := stmt.Exec(c.Symbol, c.TS.Unix(), c.Open, c.High, c.Low, c.Close)
		return err
	})
}

func (w *Writer) insertAnalysis(recs []model.TrendAnalysis) error {
	return w.inTx(`
		INSERT INTO analysis_log (symbol, ts, recommendation, family, reason, score, confidence, quality)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(recs), func(stmt *sql.Stmt, i int) error {
		r := recs[i]
		_, err := stmt.Exec(r.Symbol, r.UpdatedAt.Unix(), string(r.Recommendation), string(r.Family),
			string(r.Reason), r.Score, r.Confidence, string(r.Quality))
		return err
	})
}

// inTx prepares query once and executes it n times in a single transaction.
func (w *Writer) inTx(query string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetLastTimestamp returns the last stored candle timestamp for a symbol.
// Returns 0 if no candles exist.
func (w *Writer) GetLastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM candles WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
