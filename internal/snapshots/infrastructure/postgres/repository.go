package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

const defaultSnapshotTable = "wake_snapshots"

// SnapshotRepository is a Postgres implementation for raw wake-round rows.
type SnapshotRepository struct {
	db    *sql.DB
	table string
}

// NewSnapshotRepository constructs a repository with default table name.
func NewSnapshotRepository(db *sql.DB, opts ...RepositoryOption) *SnapshotRepository {
	repo := &SnapshotRepository{db: db, table: defaultSnapshotTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*SnapshotRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *SnapshotRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertSnapshots upserts raw wake-round rows. A replayed wake round for the
// same (site, program, round) replaces the stored payload.
func (r *SnapshotRepository) InsertSnapshots(ctx context.Context, rows []snapshots.RawSnapshot) error {
	if r == nil || r.db == nil {
		return errors.New("snapshot repo: nil db")
	}
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	site_id,
	program_id,
	wake_round_start,
	payload,
	received_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)
ON CONFLICT (site_id, program_id, wake_round_start)
DO UPDATE SET payload = EXCLUDED.payload, received_at = EXCLUDED.received_at`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, row := range rows {
		if row.SiteID == "" || row.ProgramID == "" || row.WakeRoundStart == "" {
			return fmt.Errorf("snapshot repo: incomplete row %q", row.ID)
		}
		roundStart, ok := row.WakeRoundTime()
		if !ok {
			return fmt.Errorf("snapshot repo: unparseable wake round %q", row.WakeRoundStart)
		}
		if _, err := tx.ExecContext(ctx, query,
			row.ID, row.SiteID, row.ProgramID, roundStart, []byte(row.Payload), now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
