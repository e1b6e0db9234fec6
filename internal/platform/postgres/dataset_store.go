package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/store"
)

// PostgresDatasetStore implements the store.DatasetStore interface using
// PostgreSQL. Rows are stored as JSONB documents keyed by column name; the
// bigserial row id doubles as the stable entity reference matches point
// back to.
type PostgresDatasetStore struct {
	db store.DBTX
}

// NewPostgresDatasetStore creates a new PostgresDatasetStore.
func NewPostgresDatasetStore(db store.DBTX) *PostgresDatasetStore {
	return &PostgresDatasetStore{
		db: db,
	}
}

// InsertBatch appends a batch of rows for the task in a single statement.
func (s *PostgresDatasetStore) InsertBatch(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error {
	log := logger.FromContext(ctx)

	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO dataset_rows (task_id, row_values) VALUES `)

	args := make([]any, 0, len(rows)*2)
	for i, values := range rows {
		encoded, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("failed to marshal row values: %w", err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($")
		sb.WriteString(strconv.Itoa(len(args) + 1))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(len(args) + 2))
		sb.WriteString(")")
		args = append(args, taskID, encoded)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		log.Error("failed to insert dataset rows",
			"task_id", taskID,
			"batch_size", len(rows),
			"error", err)
		return fmt.Errorf("failed to insert dataset rows: %w", MapError(err))
	}

	return nil
}

// QueryRows returns all rows of the task in insertion order. A non-empty
// columns slice narrows the values loaded per row.
func (s *PostgresDatasetStore) QueryRows(ctx context.Context, taskID uuid.UUID, columns []string) ([]domain.DatasetRow, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, row_values
		FROM dataset_rows
		WHERE task_id = $1
		ORDER BY id ASC
	`

	dbRows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to query dataset rows",
			"task_id", taskID,
			"error", err)
		return nil, fmt.Errorf("failed to query dataset rows: %w", MapError(err))
	}
	defer dbRows.Close()

	var rows []domain.DatasetRow
	for dbRows.Next() {
		var id int64
		var encoded []byte

		if err := dbRows.Scan(&id, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}

		var values map[string]string
		if err := json.Unmarshal(encoded, &values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dataset row: %w", err)
		}

		rows = append(rows, domain.DatasetRow{
			EntityRef: strconv.FormatInt(id, 10),
			Values:    narrowColumns(values, columns),
		})
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset rows: %w", err)
	}

	return rows, nil
}

// DeleteRows removes every row of the task.
func (s *PostgresDatasetStore) DeleteRows(ctx context.Context, taskID uuid.UUID) error {
	log := logger.FromContext(ctx)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM dataset_rows WHERE task_id = $1`, taskID); err != nil {
		log.Error("failed to delete dataset rows",
			"task_id", taskID,
			"error", err)
		return fmt.Errorf("failed to delete dataset rows: %w", MapError(err))
	}

	return nil
}

// narrowColumns keeps only the requested columns. An empty request keeps
// every column.
func narrowColumns(values map[string]string, columns []string) map[string]string {
	if len(columns) == 0 {
		return values
	}

	narrowed := make(map[string]string, len(columns))
	for _, column := range columns {
		if value, ok := values[column]; ok {
			narrowed[column] = value
		}
	}
	return narrowed
}
