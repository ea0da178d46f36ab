package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// Row statuses. Imported rows start EMPTY unless they arrive with
// ingredient text already filled in, which stores them SKIPPED.
const (
	RowStatusEmpty     = "EMPTY"
	RowStatusTrusted   = "TRUSTED"
	RowStatusTentative = "TENTATIVE"
	RowStatusNotFound  = "NOT_FOUND"
	RowStatusSkipped   = "SKIPPED"
	RowStatusError     = "ERROR"
)

const (
	TaskStatusRunning   = "RUNNING"
	TaskStatusCompleted = "COMPLETED"
	TaskStatusFailed    = "FAILED"
	TaskStatusCanceled  = "CANCELED"
)

// Task-row statuses. Terminal values reuse the row statuses written by the
// runner (TRUSTED, TENTATIVE, NOT_FOUND, SKIPPED, ERROR).
const (
	TaskRowStatusQueued  = "QUEUED"
	TaskRowStatusRunning = "RUNNING"
)

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) RunMigrations(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

type Import struct {
	ImportID  string    `json:"import_id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

type Row struct {
	RowID             string    `json:"row_id"`
	ImportID          string    `json:"import_id"`
	RowIndex          int       `json:"row_index"`
	Brand             string    `json:"brand"`
	ProductName       string    `json:"product_name"`
	Market            string    `json:"market"`
	RawIngredientText string    `json:"raw_ingredient_text,omitempty"`
	SourceRef         string    `json:"source_ref,omitempty"`
	SourceType        string    `json:"source_type,omitempty"`
	Status            string    `json:"status"`
	Confidence        float64   `json:"confidence"`
	Error             string    `json:"error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Task struct {
	TaskID     string     `json:"task_id"`
	ImportID   string     `json:"import_id"`
	Status     string     `json:"status"`
	Force      bool       `json:"force"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type TaskRow struct {
	ID         int64      `json:"id"`
	TaskID     string     `json:"task_id"`
	RowID      string     `json:"row_id"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (s *Store) CreateImport(ctx context.Context, filename string) (Import, error) {
	imp := Import{
		ImportID:  uuid.NewString(),
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO imports (import_id, filename, created_at)
VALUES ($1, $2, $3)
`, imp.ImportID, imp.Filename, imp.CreatedAt)
	if err != nil {
		return Import{}, fmt.Errorf("failed to create import: %w", err)
	}
	return imp, nil
}

func (s *Store) GetImport(ctx context.Context, importID string) (Import, error) {
	var imp Import
	err := s.db.QueryRowContext(ctx, `
SELECT import_id, filename, created_at
FROM imports
WHERE import_id = $1
`, importID).Scan(&imp.ImportID, &imp.Filename, &imp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNotFound
	}
	if err != nil {
		return Import{}, err
	}
	return imp, nil
}

func (s *Store) InsertRows(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO candidate_rows (row_id, import_id, row_index, brand, product_name, market, raw_ingredient_text, source_ref, source_type, status, confidence, error, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.RowID,
			r.ImportID,
			r.RowIndex,
			r.Brand,
			r.ProductName,
			r.Market,
			nullString(r.RawIngredientText),
			nullString(r.SourceRef),
			nullString(r.SourceType),
			r.Status,
			r.Confidence,
			nullString(r.Error),
		); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r.RowIndex, err)
		}
	}

	return tx.Commit()
}

const rowColumns = `row_id, import_id, row_index, brand, product_name, market, raw_ingredient_text, source_ref, source_type, status, confidence, error, updated_at`

func (s *Store) ListRows(ctx context.Context, importID, status, q string, limit int) ([]Row, error) {
	query := `SELECT ` + rowColumns + ` FROM candidate_rows WHERE import_id = $1`
	args := []interface{}{importID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		query += fmt.Sprintf(" AND (brand ILIKE $%d OR product_name ILIKE $%d)", len(args), len(args))
	}
	args = append(args, clampLimit(limit, 200, 500))
	query += fmt.Sprintf(" ORDER BY row_index ASC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRows(rows)
}

func (s *Store) GetRow(ctx context.Context, rowID string) (Row, error) {
	row, err := scanRow(s.db.QueryRowContext(ctx, `
SELECT `+rowColumns+`
FROM candidate_rows
WHERE row_id = $1
`, rowID))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	return row, err
}

func (s *Store) RowsByIDs(ctx context.Context, rowIDs []string) ([]Row, error) {
	if len(rowIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+rowColumns+`
FROM candidate_rows
WHERE row_id = ANY($1)
ORDER BY row_index ASC
`, pq.Array(rowIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRows(rows)
}

func (s *Store) RowsByStatuses(ctx context.Context, importID string, statuses []string) ([]Row, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+rowColumns+`
FROM candidate_rows
WHERE import_id = $1 AND status = ANY($2)
ORDER BY row_index ASC
`, importID, pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRows(rows)
}

func (s *Store) RowsForExport(ctx context.Context, importID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+rowColumns+`
FROM candidate_rows
WHERE import_id = $1
ORDER BY row_index ASC
`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRows(rows)
}

// UpdateRow rewrites every mutable column of a candidate row. Callers load
// the row, change fields, and write it back whole.
func (s *Store) UpdateRow(ctx context.Context, r Row) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE candidate_rows
SET brand = $2,
    product_name = $3,
    market = $4,
    raw_ingredient_text = $5,
    source_ref = $6,
    source_type = $7,
    status = $8,
    confidence = $9,
    error = $10,
    updated_at = NOW()
WHERE row_id = $1
`,
		r.RowID,
		r.Brand,
		r.ProductName,
		r.Market,
		nullString(r.RawIngredientText),
		nullString(r.SourceRef),
		nullString(r.SourceType),
		r.Status,
		r.Confidence,
		nullString(r.Error),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, importID string, force bool) (Task, error) {
	now := time.Now().UTC()
	task := Task{
		TaskID:    uuid.NewString(),
		ImportID:  importID,
		Status:    TaskStatusRunning,
		Force:     force,
		CreatedAt: now,
		StartedAt: &now,
	}
	forceInt := 0
	if force {
		forceInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO harvest_tasks (task_id, import_id, status, force, created_at, started_at)
VALUES ($1, $2, $3, $4, $5, $5)
`, task.TaskID, task.ImportID, task.Status, forceInt, now)
	if err != nil {
		return Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (Task, error) {
	var (
		t          Task
		forceInt   int
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
SELECT task_id, import_id, status, force, created_at, started_at, finished_at
FROM harvest_tasks
WHERE task_id = $1
`, taskID).Scan(&t.TaskID, &t.ImportID, &t.Status, &forceInt, &t.CreatedAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	t.Force = forceInt != 0
	if startedAt.Valid {
		ts := startedAt.Time
		t.StartedAt = &ts
	}
	if finishedAt.Valid {
		ts := finishedAt.Time
		t.FinishedAt = &ts
	}
	return t, nil
}

func (s *Store) InsertTaskRows(ctx context.Context, taskID string, rowIDs []string) error {
	if len(rowIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO task_rows (task_id, row_id, status)
VALUES ($1, $2, $3)
`)
	if err != nil {
		return fmt.Errorf("failed to prepare task row insert: %w", err)
	}
	defer stmt.Close()

	for _, rowID := range rowIDs {
		if _, err := stmt.ExecContext(ctx, taskID, rowID, TaskRowStatusQueued); err != nil {
			return fmt.Errorf("failed to insert task row: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateTaskRow moves one task row through its lifecycle, stamping
// started_at on RUNNING and finished_at on any terminal status.
func (s *Store) UpdateTaskRow(ctx context.Context, taskID, rowID, status, message string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE task_rows
SET status = $3,
    message = $4,
    started_at = CASE WHEN $3 = 'RUNNING' THEN NOW() ELSE started_at END,
    finished_at = CASE WHEN $3 NOT IN ('QUEUED', 'RUNNING') THEN NOW() ELSE finished_at END
WHERE task_id = $1 AND row_id = $2
`, taskID, rowID, status, nullString(message))
	return err
}

func (s *Store) TaskCounts(ctx context.Context, taskID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT status, COUNT(*)
FROM task_rows
WHERE task_id = $1
GROUP BY status
`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// MaybeFinishTask flips a task to its terminal status once every task row
// is terminal: FAILED when every row errored, COMPLETED otherwise. It
// reports whether the task is finished.
func (s *Store) MaybeFinishTask(ctx context.Context, taskID string) (bool, error) {
	counts, err := s.TaskCounts(ctx, taskID)
	if err != nil {
		return false, err
	}

	total, pending, errored := 0, 0, 0
	for status, n := range counts {
		total += n
		switch status {
		case TaskRowStatusQueued, TaskRowStatusRunning:
			pending += n
		case RowStatusError:
			errored += n
		}
	}
	if total == 0 || pending > 0 {
		return false, nil
	}

	final := TaskStatusCompleted
	if errored == total {
		final = TaskStatusFailed
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE harvest_tasks
SET status = $2, finished_at = NOW()
WHERE task_id = $1 AND status = $3
`, taskID, final, TaskStatusRunning)
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(sc rowScanner) (Row, error) {
	var (
		r          Row
		rawText    sql.NullString
		sourceRef  sql.NullString
		sourceType sql.NullString
		confidence sql.NullFloat64
		errMsg     sql.NullString
		updatedAt  sql.NullTime
	)
	if err := sc.Scan(
		&r.RowID,
		&r.ImportID,
		&r.RowIndex,
		&r.Brand,
		&r.ProductName,
		&r.Market,
		&rawText,
		&sourceRef,
		&sourceType,
		&r.Status,
		&confidence,
		&errMsg,
		&updatedAt,
	); err != nil {
		return Row{}, err
	}

	if rawText.Valid {
		r.RawIngredientText = rawText.String
	}
	if sourceRef.Valid {
		r.SourceRef = sourceRef.String
	}
	if sourceType.Valid {
		r.SourceType = sourceType.String
	}
	if confidence.Valid {
		r.Confidence = confidence.Float64
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if updatedAt.Valid {
		r.UpdatedAt = updatedAt.Time
	}
	return r, nil
}

func collectRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
