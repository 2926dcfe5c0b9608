package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// Test-case run statuses. CANCELLED is set either by the user (before or
// during execution) or by the terminator when a task is torn down without a
// terminal status.
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
	RunStatusCancelled = "CANCELLED"
)

// ErrRunNotFound indicates the referenced test-case run does not exist.
var ErrRunNotFound = fmt.Errorf("test case run not found")

// TerminalRunStatus reports whether a status is final.
func TerminalRunStatus(status string) bool {
	return status == RunStatusCompleted || status == RunStatusFailed || status == RunStatusCancelled
}

// TestCaseRun is one persisted test-case execution record.
type TestCaseRun struct {
	bun.BaseModel `bun:"table:test_case_runs"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	FlowID    string    `bun:"flow_id,notnull"`
	CaseID    string    `bun:"case_id,notnull"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// TestCaseRuns is the repository over test-case run records.
type TestCaseRuns struct {
	db *bun.DB
}

// NewTestCaseRuns creates a repository over an existing bun connection.
func NewTestCaseRuns(db *bun.DB) *TestCaseRuns {
	return &TestCaseRuns{db: db}
}

// CreateTable creates the test_case_runs table if it does not exist.
func (runs *TestCaseRuns) CreateTable(ctx context.Context) error {
	_, err := runs.db.NewCreateTable().
		Model((*TestCaseRun)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Create inserts a new run record.
func (runs *TestCaseRuns) Create(ctx context.Context, record *TestCaseRun) error {
	if record.Status == "" {
		record.Status = RunStatusPending
	}
	_, err := runs.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// GetStatus returns the current status of a run.
func (runs *TestCaseRuns) GetStatus(ctx context.Context, runID string) (string, error) {
	var record TestCaseRun
	err := runs.db.NewSelect().
		Model(&record).
		Column("status").
		Where("id = ?", runID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	if err != nil {
		return "", err
	}
	return record.Status, nil
}

// SetStatus updates a run's status and touch timestamp.
func (runs *TestCaseRuns) SetStatus(ctx context.Context, runID, status string) error {
	result, err := runs.db.NewUpdate().
		Model((*TestCaseRun)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", runID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return err
}

// MarkCancelled sets CANCELLED unless the run already reached a terminal
// status. The guard keeps the terminator's late cleanup from overwriting a
// COMPLETED or FAILED outcome.
func (runs *TestCaseRuns) MarkCancelled(ctx context.Context, runID string) error {
	_, err := runs.db.NewUpdate().
		Model((*TestCaseRun)(nil)).
		Set("status = ?", RunStatusCancelled).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", runID).
		Where("status NOT IN (?)", bun.In([]string{RunStatusCompleted, RunStatusFailed, RunStatusCancelled})).
		Exec(ctx)
	return err
}

// MemoryTestCaseRuns is an in-process run store for tests and
// single-process deployments.
type MemoryTestCaseRuns struct {
	mu      sync.Mutex
	records map[string]*TestCaseRun
}

// NewMemoryTestCaseRuns creates an empty in-memory run store.
func NewMemoryTestCaseRuns() *MemoryTestCaseRuns {
	return &MemoryTestCaseRuns{records: make(map[string]*TestCaseRun)}
}

// Create inserts a new run record.
func (runs *MemoryTestCaseRuns) Create(_ context.Context, record *TestCaseRun) error {
	runs.mu.Lock()
	defer runs.mu.Unlock()

	if _, exists := runs.records[record.ID]; exists {
		return fmt.Errorf("test case run %q already exists", record.ID)
	}
	if record.Status == "" {
		record.Status = RunStatusPending
	}
	stored := *record
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	runs.records[record.ID] = &stored
	return nil
}

// GetStatus returns the current status of a run.
func (runs *MemoryTestCaseRuns) GetStatus(_ context.Context, runID string) (string, error) {
	runs.mu.Lock()
	defer runs.mu.Unlock()

	record, exists := runs.records[runID]
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return record.Status, nil
}

// SetStatus updates a run's status.
func (runs *MemoryTestCaseRuns) SetStatus(_ context.Context, runID, status string) error {
	runs.mu.Lock()
	defer runs.mu.Unlock()

	record, exists := runs.records[runID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	record.Status = status
	record.UpdatedAt = time.Now()
	return nil
}

// MarkCancelled sets CANCELLED unless the run already reached a terminal
// status.
func (runs *MemoryTestCaseRuns) MarkCancelled(_ context.Context, runID string) error {
	runs.mu.Lock()
	defer runs.mu.Unlock()

	record, exists := runs.records[runID]
	if !exists || TerminalRunStatus(record.Status) {
		return nil
	}
	record.Status = RunStatusCancelled
	record.UpdatedAt = time.Now()
	return nil
}
