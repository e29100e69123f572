// Package history provides access to the action_executions and
// detections tables for querying what the rig has done and why.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pagination bounds for list queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Execution is one persisted action execution.
type Execution struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Detail     string        `json:"detail"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	ExecutedAt time.Time     `json:"executed_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Detection is one persisted pest detection event.
type Detection struct {
	ID         string    `json:"id"`
	PestType   string    `json:"pest_type"`
	Confidence float64   `json:"confidence"`
	Tier       string    `json:"tier"`
	Source     string    `json:"source"`
	DetectedAt time.Time `json:"detected_at"`
}

// ExecutionFilter controls which executions to return.
type ExecutionFilter struct {
	Kind   string // optional: filter by action kind
	Status string // optional: filter by execution status
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// DetectionFilter controls which detections to return.
type DetectionFilter struct {
	PestType string // optional: filter by pest type
	Tier     string // optional: filter by risk tier
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ExecutionList contains paginated execution results.
type ExecutionList struct {
	Executions []Execution `json:"executions"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// DetectionList contains paginated detection results.
type DetectionList struct {
	Detections []Detection `json:"detections"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Repository defines the interface for history operations.
type Repository interface {
	RecordExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) (*ExecutionList, error)
	RecordDetection(ctx context.Context, det *Detection) error
	ListDetections(ctx context.Context, filter DetectionFilter) (*DetectionList, error)
}

// SQLiteRepository persists history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordExecution inserts an execution row. ID and ExecutedAt are
// generated if empty.
func (r *SQLiteRepository) RecordExecution(ctx context.Context, exec *Execution) error {
	if exec.ID == "" {
		exec.ID = "act-" + uuid.NewString()[:8]
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_executions (id, kind, detail, status, error, executed_at, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.Kind, exec.Detail, exec.Status,
		nullableString(exec.Error),
		exec.ExecutedAt.Format(time.RFC3339),
		exec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions returns executions matching the filter, most recent first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, filter ExecutionFilter) (*ExecutionList, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := whereClause(conditions)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM action_executions %s", where) //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting executions: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, kind, detail, status, error, executed_at, elapsed_ms FROM action_executions %s ORDER BY executed_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		var exec Execution
		var errDetail sql.NullString
		var executedAt string
		var elapsedMS int64

		if err := rows.Scan(&exec.ID, &exec.Kind, &exec.Detail, &exec.Status,
			&errDetail, &executedAt, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}

		if errDetail.Valid {
			exec.Error = errDetail.String
		}
		exec.Elapsed = time.Duration(elapsedMS) * time.Millisecond

		exec.ExecutedAt, err = parseTimestamp(executedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing execution timestamp %q: %w", executedAt, err)
		}

		executions = append(executions, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}

	return &ExecutionList{
		Executions: executions,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// RecordDetection inserts a detection row. ID and DetectedAt are
// generated if empty.
func (r *SQLiteRepository) RecordDetection(ctx context.Context, det *Detection) error {
	if det.ID == "" {
		det.ID = "det-" + uuid.NewString()[:8]
	}
	if det.DetectedAt.IsZero() {
		det.DetectedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO detections (id, pest_type, confidence, tier, source, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		det.ID, det.PestType, det.Confidence, det.Tier, det.Source,
		det.DetectedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}
	return nil
}

// ListDetections returns detections matching the filter, most recent first.
func (r *SQLiteRepository) ListDetections(ctx context.Context, filter DetectionFilter) (*DetectionList, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)

	var conditions []string
	var args []any
	if filter.PestType != "" {
		conditions = append(conditions, "pest_type = ?")
		args = append(args, filter.PestType)
	}
	if filter.Tier != "" {
		conditions = append(conditions, "tier = ?")
		args = append(args, filter.Tier)
	}
	where := whereClause(conditions)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM detections %s", where) //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting detections: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, pest_type, confidence, tier, source, detected_at FROM detections %s ORDER BY detected_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	detections := []Detection{}
	for rows.Next() {
		var det Detection
		var detectedAt string

		if err := rows.Scan(&det.ID, &det.PestType, &det.Confidence,
			&det.Tier, &det.Source, &detectedAt); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}

		det.DetectedAt, err = parseTimestamp(detectedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing detection timestamp %q: %w", detectedAt, err)
		}

		detections = append(detections, det)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating detections: %w", err)
	}

	return &DetectionList{
		Detections: detections,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

// nullableString returns nil for empty strings, for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05Z", s)
}
