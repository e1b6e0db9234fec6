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

// PostgresSearchStore implements the store.SearchStore interface using PostgreSQL.
type PostgresSearchStore struct {
	db store.DBTX
}

// NewPostgresSearchStore creates a new PostgresSearchStore.
func NewPostgresSearchStore(db store.DBTX) *PostgresSearchStore {
	return &PostgresSearchStore{
		db: db,
	}
}

// Save persists a new search record.
func (s *PostgresSearchStore) Save(ctx context.Context, search *domain.Search) error {
	log := logger.FromContext(ctx)

	if err := search.Validate(); err != nil {
		return err
	}

	queryNames, err := json.Marshal(search.QueryNames)
	if err != nil {
		return fmt.Errorf("failed to marshal query names: %w", err)
	}
	columns, err := json.Marshal(search.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	query := `
		INSERT INTO searches
			(id, task_id, kind, query_names, columns, threshold, watchlist_ref,
			 status, total_rows, execution_time_ms, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		search.ID,
		search.TaskID,
		search.Kind,
		queryNames,
		columns,
		search.Threshold,
		search.WatchlistRef,
		search.Status,
		search.TotalRows,
		search.ExecutionTimeMS,
		search.ErrorMessage,
		search.CreatedAt,
		search.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save search",
			"search_id", search.ID,
			"task_id", search.TaskID,
			"error", err)
		return fmt.Errorf("failed to save search: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a search by its id.
func (s *PostgresSearchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Search, error) {
	query := `
		SELECT id, task_id, kind, query_names, columns, threshold, watchlist_ref,
		       status, total_rows, execution_time_ms, matched_records, summary,
		       error_message, created_at, updated_at
		FROM searches
		WHERE id = $1
	`

	search, err := scanSearch(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSearchNotFound
		}
		return nil, fmt.Errorf("failed to get search: %w", MapError(err))
	}

	return search, nil
}

// MarkProcessing transitions the search to processing.
func (s *PostgresSearchStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.SearchStatusProcessing)
}

// Complete writes the successful outcome of a search run.
func (s *PostgresSearchStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	matched []domain.MatchedRecord,
	summary *domain.SearchSummary,
	totalRows int,
	executionTimeMS int64,
) error {
	log := logger.FromContext(ctx)

	matchedJSON, err := json.Marshal(matched)
	if err != nil {
		return fmt.Errorf("failed to marshal matched records: %w", err)
	}

	var summaryJSON []byte
	if summary != nil {
		summaryJSON, err = json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
	}

	query := `
		UPDATE searches
		SET status = $1, matched_records = $2, summary = $3, total_rows = $4,
		    execution_time_ms = $5, error_message = '', updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.SearchStatusCompleted,
		matchedJSON,
		summaryJSON,
		totalRows,
		executionTimeMS,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to complete search",
			"search_id", id,
			"error", err)
		return fmt.Errorf("failed to complete search: %w", MapError(err))
	}

	return checkSearchAffected(result)
}

// Fail writes the failed outcome of a search run.
func (s *PostgresSearchStore) Fail(ctx context.Context, id uuid.UUID, errorMsg string, executionTimeMS int64) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE searches
		SET status = $1, error_message = $2, execution_time_ms = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.SearchStatusFailed,
		errorMsg,
		executionTimeMS,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to mark search failed",
			"search_id", id,
			"error", err)
		return fmt.Errorf("failed to mark search failed: %w", MapError(err))
	}

	return checkSearchAffected(result)
}

// ListNonTerminal returns searches that have not reached a terminal state,
// oldest first.
func (s *PostgresSearchStore) ListNonTerminal(ctx context.Context) ([]*domain.Search, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, task_id, kind, query_names, columns, threshold, watchlist_ref,
		       status, total_rows, execution_time_ms, matched_records, summary,
		       error_message, created_at, updated_at
		FROM searches
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.SearchStatusPending, domain.SearchStatusProcessing)
	if err != nil {
		log.Error("failed to query unfinished searches", "error", err)
		return nil, fmt.Errorf("failed to query unfinished searches: %w", MapError(err))
	}
	defer rows.Close()

	var searches []*domain.Search
	for rows.Next() {
		search, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		searches = append(searches, search)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search rows: %w", err)
	}

	return searches, nil
}

// ResetToPending returns a processing search to pending.
func (s *PostgresSearchStore) ResetToPending(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.SearchStatusPending)
}

func (s *PostgresSearchStore) setStatus(ctx context.Context, id uuid.UUID, status domain.SearchStatus) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE searches
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update search status",
			"search_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update search status: %w", MapError(err))
	}

	return checkSearchAffected(result)
}

func checkSearchAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrSearchNotFound
	}
	return nil
}

func scanSearch(row rowScanner) (*domain.Search, error) {
	var search domain.Search
	var queryNames, columns []byte
	var matchedRecords, summary []byte
	var watchlistRef, errorMessage sql.NullString

	err := row.Scan(
		&search.ID,
		&search.TaskID,
		&search.Kind,
		&queryNames,
		&columns,
		&search.Threshold,
		&watchlistRef,
		&search.Status,
		&search.TotalRows,
		&search.ExecutionTimeMS,
		&matchedRecords,
		&summary,
		&errorMessage,
		&search.CreatedAt,
		&search.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	search.WatchlistRef = watchlistRef.String
	search.ErrorMessage = errorMessage.String

	if len(queryNames) > 0 {
		if err := json.Unmarshal(queryNames, &search.QueryNames); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query names: %w", err)
		}
	}
	if len(columns) > 0 {
		if err := json.Unmarshal(columns, &search.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
	}
	if len(matchedRecords) > 0 {
		if err := json.Unmarshal(matchedRecords, &search.MatchedRecords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal matched records: %w", err)
		}
	}
	if len(summary) > 0 {
		search.Summary = &domain.SearchSummary{}
		if err := json.Unmarshal(summary, search.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
	}

	return &search, nil
}
