package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SearchStatus represents the processing state of a search.
type SearchStatus string

// Possible search status values
const (
	SearchStatusPending    SearchStatus = "pending"
	SearchStatusProcessing SearchStatus = "processing"
	SearchStatusCompleted  SearchStatus = "completed"
	SearchStatusFailed     SearchStatus = "failed"
)

// SearchKind distinguishes a single-name search from a bulk (watchlist) search.
type SearchKind string

const (
	SearchKindSingle SearchKind = "single"
	SearchKindBulk   SearchKind = "bulk"
)

// Common validation errors for Search
var (
	ErrEmptySearchID       = errors.New("search ID cannot be empty")
	ErrEmptySearchTaskID   = errors.New("search task ID cannot be empty")
	ErrNoQueryNames        = errors.New("search requires at least one query name")
	ErrNoSearchColumns     = errors.New("search requires at least one column")
	ErrInvalidThreshold    = errors.New("threshold must be between 0 and 100")
	ErrInvalidSearchStatus = errors.New("invalid search status")
	ErrInvalidSearchKind   = errors.New("invalid search kind")
)

// MatchedRecord is one scored hit (or, for bulk searches, a per-query
// outcome which may be a miss) against the ingested dataset.
type MatchedRecord struct {
	QueryName     string            `json:"query_name"`
	Found         bool              `json:"found"`
	Confidence    float64           `json:"confidence"`
	MatchedColumn string            `json:"matched_column,omitempty"`
	MatchedValue  string            `json:"matched_value,omitempty"`
	EntityRef     string            `json:"entity_ref,omitempty"`
	FullRecord    map[string]string `json:"full_record,omitempty"`
}

// SearchSummary aggregates the outcome of a bulk search.
type SearchSummary struct {
	TotalSearched       int     `json:"total_searched"`
	TotalFound          int     `json:"total_found"`
	TotalAboveThreshold int     `json:"total_above_threshold"`
	MaxConfidence       float64 `json:"max_confidence"`
}

// DatasetRow is one ingested record as stored in the dataset store.
// EntityRef is the stable identifier matches point back to.
type DatasetRow struct {
	EntityRef string            `json:"entity_ref"`
	Values    map[string]string `json:"values"`
}

// Search represents one screening request against a completed task's rows.
type Search struct {
	ID              uuid.UUID       `json:"id"`
	TaskID          uuid.UUID       `json:"task_id"`
	Kind            SearchKind      `json:"kind"`
	QueryNames      []string        `json:"query_names"`
	Columns         []string        `json:"columns"`
	Threshold       float64         `json:"threshold"`
	WatchlistRef    string          `json:"watchlist_ref,omitempty"`
	Status          SearchStatus    `json:"status"`
	TotalRows       int             `json:"total_rows"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	MatchedRecords  []MatchedRecord `json:"matched_records"`
	Summary         *SearchSummary  `json:"summary,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewSearch creates a pending search against the given task.
// Returns an error if validation fails.
func NewSearch(
	taskID uuid.UUID,
	kind SearchKind,
	queryNames []string,
	columns []string,
	threshold float64,
	watchlistRef string,
) (*Search, error) {
	search := &Search{
		ID:           uuid.New(),
		TaskID:       taskID,
		Kind:         kind,
		QueryNames:   queryNames,
		Columns:      columns,
		Threshold:    threshold,
		WatchlistRef: watchlistRef,
		Status:       SearchStatusPending,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := search.Validate(); err != nil {
		return nil, err
	}

	return search, nil
}

// Validate checks if the Search has valid data.
func (s *Search) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySearchID
	}

	if s.TaskID == uuid.Nil {
		return ErrEmptySearchTaskID
	}

	if s.Kind != SearchKindSingle && s.Kind != SearchKindBulk {
		return ErrInvalidSearchKind
	}

	if len(s.QueryNames) == 0 {
		return ErrNoQueryNames
	}

	if len(s.Columns) == 0 {
		return ErrNoSearchColumns
	}

	if s.Threshold < 0 || s.Threshold > 100 {
		return ErrInvalidThreshold
	}

	if !isValidSearchStatus(s.Status) {
		return ErrInvalidSearchStatus
	}

	return nil
}

// Terminal reports whether the search has reached a terminal status.
func (s *Search) Terminal() bool {
	return s.Status == SearchStatusCompleted || s.Status == SearchStatusFailed
}

func isValidSearchStatus(status SearchStatus) bool {
	switch status {
	case SearchStatusPending, SearchStatusProcessing, SearchStatusCompleted, SearchStatusFailed:
		return true
	default:
		return false
	}
}
