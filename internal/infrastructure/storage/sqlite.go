package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// MaxAge bounds how old each kind of snapshot may be before it counts as unavailable.
// A zero duration disables the check.
type MaxAge struct {
	Pivots  time.Duration
	OI      time.Duration
	Candles time.Duration
}

func DefaultMaxAge() MaxAge {
	return MaxAge{
		Pivots:  2 * time.Hour,
		OI:      3 * time.Minute,
		Candles: 5 * time.Minute,
	}
}

// SQLiteStore serves the upstream JSON snapshots (pivots, OI, candles) by logical key
// and keeps the exit decision log.
type SQLiteStore struct {
	db     *sql.DB
	maxAge MaxAge
	now    func() time.Time
}

func NewSQLiteStore(dbPath string, maxAge MaxAge) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, maxAge: maxAge, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exit_decisions (
			id TEXT PRIMARY KEY,
			scrip_code TEXT NOT NULL,
			target_index INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			remaining_quantity INTEGER NOT NULL,
			close_all BOOLEAN NOT NULL DEFAULT 0,
			reason TEXT NOT NULL,
			price REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exit_decisions_scrip ON exit_decisions(scrip_code, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func PivotKey(underlying string) string { return "pivots:" + underlying }
func OIKey(scripCode string) string     { return "oi:" + scripCode }
func CandleKey(scripCode, timeframe string) string {
	return "candles:" + scripCode + ":" + timeframe
}

// PutSnapshot upserts a JSON payload under key.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	query := `INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)
			  ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, key, string(payload), s.now().UTC())
	return err
}

// getSnapshot decodes the payload under key into v. Missing or stale rows map to
// domain.ErrDataUnavailable.
func (s *SQLiteStore) getSnapshot(ctx context.Context, key string, maxAge time.Duration, v any) error {
	var payload string
	var updatedAt time.Time
	row := s.db.QueryRowContext(ctx, `SELECT payload, updated_at FROM snapshots WHERE key = ?`, key)
	if err := row.Scan(&payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: no snapshot for %s", domain.ErrDataUnavailable, key)
		}
		return fmt.Errorf("%w: read %s: %v", domain.ErrDataUnavailable, key, err)
	}
	if maxAge > 0 && s.now().Sub(updatedAt) > maxAge {
		return fmt.Errorf("%w: snapshot %s is stale (updated %s)", domain.ErrDataUnavailable, key, updatedAt.Format(time.RFC3339))
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrDataUnavailable, key, err)
	}
	return nil
}

// PivotSource implementation

func (s *SQLiteStore) GetPivots(ctx context.Context, underlying string) (*domain.MultiTimeframePivots, error) {
	var p domain.MultiTimeframePivots
	if err := s.getSnapshot(ctx, PivotKey(underlying), s.maxAge.Pivots, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) PutPivots(ctx context.Context, p *domain.MultiTimeframePivots) error {
	return s.PutSnapshot(ctx, PivotKey(p.ScripCode), p)
}

// OISource implementation

func (s *SQLiteStore) GetOISnapshot(ctx context.Context, scripCode string) (*domain.OISnapshot, error) {
	var o domain.OISnapshot
	if err := s.getSnapshot(ctx, OIKey(scripCode), s.maxAge.OI, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SQLiteStore) PutOISnapshot(ctx context.Context, o *domain.OISnapshot) error {
	return s.PutSnapshot(ctx, OIKey(o.ScripCode), o)
}

// CandleSource implementation

func (s *SQLiteStore) GetCandles(ctx context.Context, scripCode, timeframe string, limit int) ([]domain.Candle, error) {
	var candles []domain.Candle
	if err := s.getSnapshot(ctx, CandleKey(scripCode, timeframe), s.maxAge.Candles, &candles); err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (s *SQLiteStore) PutCandles(ctx context.Context, scripCode, timeframe string, candles []domain.Candle) error {
	return s.PutSnapshot(ctx, CandleKey(scripCode, timeframe), candles)
}

// DecisionRepository implementation

func (s *SQLiteStore) SaveExitDecision(ctx context.Context, d *domain.ExitDecision) error {
	query := `INSERT INTO exit_decisions (id, scrip_code, target_index, quantity, remaining_quantity, close_all, reason, price, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ScripCode, d.TargetIndex, d.Quantity, d.RemainingQuantity, d.CloseAll, d.Reason, d.Price, d.CreatedAt.UTC())
	return err
}

// ListExitDecisions returns the newest decisions first. An empty scripCode lists all.
func (s *SQLiteStore) ListExitDecisions(ctx context.Context, scripCode string, limit int) ([]*domain.ExitDecision, error) {
	query := `SELECT id, scrip_code, target_index, quantity, remaining_quantity, close_all, reason, price, created_at
			  FROM exit_decisions WHERE (? = '' OR scrip_code = ?) ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, scripCode, scripCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExitDecision
	for rows.Next() {
		var d domain.ExitDecision
		if err := rows.Scan(&d.ID, &d.ScripCode, &d.TargetIndex, &d.Quantity, &d.RemainingQuantity, &d.CloseAll, &d.Reason, &d.Price, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
