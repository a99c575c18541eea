package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// SnapshotQuery loads raw wake-round rows for reconstruction.
type SnapshotQuery struct {
	db    *sql.DB
	table string
}

// NewSnapshotQuery constructs a query with default table name.
func NewSnapshotQuery(db *sql.DB, opts ...QueryOption) *SnapshotQuery {
	query := &SnapshotQuery{db: db, table: defaultSnapshotTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the snapshot query.
type QueryOption func(*SnapshotQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *SnapshotQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// SnapshotsForSite returns all stored rows for one (site, program) pair.
// Rows come back ordered by wake round, but consumers re-sort anyway.
func (q *SnapshotQuery) SnapshotsForSite(ctx context.Context, siteID, programID string) ([]snapshots.RawSnapshot, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("snapshot query: nil db")
	}
	if siteID == "" || programID == "" {
		return nil, errors.New("snapshot query: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT id, wake_round_start, payload
FROM %s
WHERE site_id = $1
	AND program_id = $2
ORDER BY wake_round_start ASC`, q.table)

	rows, err := q.db.QueryContext(ctx, query, siteID, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]snapshots.RawSnapshot, 0)
	for rows.Next() {
		var id string
		var roundStart time.Time
		var payload []byte
		if err := rows.Scan(&id, &roundStart, &payload); err != nil {
			return nil, err
		}
		result = append(result, snapshots.RawSnapshot{
			ID:             id,
			SiteID:         siteID,
			ProgramID:      programID,
			WakeRoundStart: roundStart.UTC().Format(snapshots.WakeRoundLayout),
			Payload:        json.RawMessage(payload),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
