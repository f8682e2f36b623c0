package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
)

// ErrNotFound is returned when a run is not in the history.
var ErrNotFound = errors.New("run not found")

// RunRecord is one finished run as stored in the history.
type RunRecord struct {
	TaskID     string
	Command    string
	Format     model.OutputFormat
	Status     string // Server-reported status, or the connection state when absent
	Error      string
	DurationMS int64
	CostUSD    float64
	PlanningMS int64
	Completed  int
	Output     json.RawMessage
	Steps      []model.Step
	Trace      *model.Trace
	FinishedAt time.Time
}

// Store defines the persistence interface for run history.
type Store interface {
	SaveRun(ctx context.Context, state run.RunState) error
	GetRun(ctx context.Context, taskID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	DeleteRun(ctx context.Context, taskID string) error

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite ignores _foreign_keys in the DSN; it is set by PRAGMA below
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	// Two connections let a query run while another holds a row cursor.
	return openWith(ctx, connStr, 2)
}

// NewMemoryStore creates an in-memory SQLite store for testing. Each store
// gets its own database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	// One connection keeps the private in-memory database alive and visible.
	return openWith(ctx, "file::memory:?mode=memory", 1)
}

func openWith(ctx context.Context, connStr string, maxConns int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	if maxConns == 1 {
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
