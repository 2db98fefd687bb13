package services

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SnapshotDBPath is the local SQLite file holding the latest feature
// row per symbol for cheap reads without touching Postgres.
const SnapshotDBPath = "data/features.db"

// SnapshotStore mirrors the newest feature row per symbol into a
// local SQLite database after each pipeline run.
type SnapshotStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Global snapshot store instance
var GlobalSnapshot *SnapshotStore

// LatestFeature is one symbol's most recent feature row as stored in
// the snapshot. Nil pointers map to SQL NULLs.
type LatestFeature struct {
	Symbol       string    `json:"symbol"`
	Date         string    `json:"date"`
	Close        float64   `json:"close"`
	SMA10        *float64  `json:"sma_10"`
	SMA50        *float64  `json:"sma_50"`
	RSI14        *float64  `json:"rsi_14"`
	DailyReturn  *float64  `json:"daily_return"`
	Volatility30 *float64  `json:"volatility_30"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InitSnapshotStore opens the default snapshot database
func InitSnapshotStore() error {
	store, err := OpenSnapshotStore(SnapshotDBPath)
	if err != nil {
		return err
	}
	GlobalSnapshot = store
	log.Printf("Snapshot store initialized at %s", SnapshotDBPath)
	return nil
}

// OpenSnapshotStore opens (and creates if needed) a snapshot database
// at the given path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}

	store := &SnapshotStore{db: db}
	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return store, nil
}

// Close closes the snapshot database
func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SnapshotStore) createTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema := `
		CREATE TABLE IF NOT EXISTS latest_features (
			symbol VARCHAR PRIMARY KEY,
			date VARCHAR,
			close REAL,
			sma_10 REAL,
			sma_50 REAL,
			rsi_14 REAL,
			daily_return REAL,
			volatility_30 REAL,
			updated_at TIMESTAMP
		)`
	_, err := s.db.Exec(schema)
	return err
}

// ReplaceLatest replaces the snapshot content with the given rows
// inside one transaction.
func (s *SnapshotStore) ReplaceLatest(features []LatestFeature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM latest_features"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO latest_features
		(symbol, date, close, sma_10, sma_50, rsi_14, daily_return, volatility_30, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, f := range features {
		_, err := stmt.Exec(
			f.Symbol, f.Date, f.Close,
			nullableFloat(f.SMA10), nullableFloat(f.SMA50), nullableFloat(f.RSI14),
			nullableFloat(f.DailyReturn), nullableFloat(f.Volatility30),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot row for %s: %w", f.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Printf("Snapshot updated with %d symbols", len(features))
	return nil
}

// Latest returns all snapshot rows ordered by symbol
func (s *SnapshotStore) Latest() ([]LatestFeature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT symbol, date, close, sma_10, sma_50, rsi_14, daily_return, volatility_30, updated_at
		FROM latest_features ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var features []LatestFeature
	for rows.Next() {
		var f LatestFeature
		var sma10, sma50, rsi14, dailyReturn, volatility sql.NullFloat64
		if err := rows.Scan(&f.Symbol, &f.Date, &f.Close, &sma10, &sma50, &rsi14, &dailyReturn, &volatility, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		f.SMA10 = floatPtr(sma10)
		f.SMA50 = floatPtr(sma50)
		f.RSI14 = floatPtr(rsi14)
		f.DailyReturn = floatPtr(dailyReturn)
		f.Volatility30 = floatPtr(volatility)
		features = append(features, f)
	}

	return features, rows.Err()
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
