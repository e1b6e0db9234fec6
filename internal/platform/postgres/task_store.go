package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Save persists a new task record.
func (s *PostgresTaskStore) Save(ctx context.Context, task *domain.ScreeningTask) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return err
	}

	columnNames, err := json.Marshal(task.ColumnNames)
	if err != nil {
		return fmt.Errorf("failed to marshal column names: %w", err)
	}

	query := `
		INSERT INTO screening_tasks
			(id, source_ref, status, is_done, column_names, total_rows,
			 processing_time, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.SourceRef,
		task.Status,
		task.IsDone,
		columnNames,
		task.TotalRows,
		task.ProcessingTime,
		task.ErrorMessage,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"error", err)
		return fmt.Errorf("failed to save task: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a task by its id.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScreeningTask, error) {
	query := `
		SELECT id, source_ref, status, is_done, column_names, total_rows,
		       processing_time, error_message, created_at, updated_at
		FROM screening_tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}

	return task, nil
}

// Complete writes the terminal outcome of an ingestion run.
func (s *PostgresTaskStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	columns []string,
	totalRows int,
	processingTime float64,
	errorMsg string,
) error {
	log := logger.FromContext(ctx)

	columnNames, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to marshal column names: %w", err)
	}

	query := `
		UPDATE screening_tasks
		SET status = $1, is_done = TRUE, column_names = $2, total_rows = $3,
		    processing_time = $4, error_message = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusCompleted,
		columnNames,
		totalRows,
		processingTime,
		errorMsg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to complete task",
			"task_id", id,
			"error", err)
		return fmt.Errorf("failed to complete task: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// ListNonTerminal returns tasks that have not reached a terminal state,
// oldest first.
func (s *PostgresTaskStore) ListNonTerminal(ctx context.Context) ([]*domain.ScreeningTask, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, source_ref, status, is_done, column_names, total_rows,
		       processing_time, error_message, created_at, updated_at
		FROM screening_tasks
		WHERE NOT (status = $1 AND is_done)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusCompleted)
	if err != nil {
		log.Error("failed to query unfinished tasks", "error", err)
		return nil, fmt.Errorf("failed to query unfinished tasks: %w", MapError(err))
	}
	defer rows.Close()

	var tasks []*domain.ScreeningTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// Delete removes the task record. Dataset rows and searches referencing it
// are removed by ON DELETE CASCADE.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, `DELETE FROM screening_tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			"task_id", id,
			"error", err)
		return fmt.Errorf("failed to delete task: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning code.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.ScreeningTask, error) {
	var task domain.ScreeningTask
	var columnNames []byte
	var errorMessage sql.NullString

	err := row.Scan(
		&task.ID,
		&task.SourceRef,
		&task.Status,
		&task.IsDone,
		&columnNames,
		&task.TotalRows,
		&task.ProcessingTime,
		&errorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.ErrorMessage = errorMessage.String
	if len(columnNames) > 0 {
		if err := json.Unmarshal(columnNames, &task.ColumnNames); err != nil {
			return nil, fmt.Errorf("failed to unmarshal column names: %w", err)
		}
	}

	return &task, nil
}
