package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"pmtexport/internal/tabular"
)

// ErrRunExists indicates a run ID already loaded.
var ErrRunExists = errors.New("export run already stored")

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// SaveExport stores the run header and every table row in one transaction.
func (s *PostgresStore) SaveExport(ctx context.Context, run Run, table *tabular.Table) error {
	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	skipped := run.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return fmt.Errorf("encode skipped: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO export_runs (id, pipeline, source, output_path, object_key, columns, row_count, skipped, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8::jsonb, $9, $10)
	`, run.ID, run.Pipeline, run.Source, run.Output, run.ObjectKey, string(columns), table.Len(), string(skippedJSON), run.StartedAt, run.FinishedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrRunExists, run.ID)
		}
		return fmt.Errorf("insert export run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO export_rows (run_id, row_index, participant_uuid, cells)
		VALUES ($1, $2, $3, $4::jsonb)
	`)
	if err != nil {
		return fmt.Errorf("prepare export rows: %w", err)
	}
	defer stmt.Close()

	uuidIdx := uuidColumn(table.Columns)
	for i, row := range table.Rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		participantID := ""
		if uuidIdx >= 0 {
			participantID = row[uuidIdx]
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, participantID, string(cells)); err != nil {
			return fmt.Errorf("insert export row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

// LoadTable reads a stored run back as a table.
func (s *PostgresStore) LoadTable(ctx context.Context, runID string) (*tabular.Table, error) {
	var columnsJSON string
	err := s.db.QueryRowContext(ctx, `SELECT columns::text FROM export_runs WHERE id=$1`, runID).Scan(&columnsJSON)
	if err != nil {
		return nil, fmt.Errorf("lookup export run: %w", err)
	}
	var columns []string
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cells::text FROM export_rows
		WHERE run_id=$1
		ORDER BY row_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list export rows: %w", err)
	}
	defer rows.Close()

	table := tabular.New(columns)
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return nil, fmt.Errorf("decode export row: %w", err)
		}
		if err := table.Append(cells); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export rows: %w", err)
	}
	return table, nil
}

func uuidColumn(columns []string) int {
	for i, c := range columns {
		if c == "uuid" {
			return i
		}
	}
	return -1
}
