package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Context  string
	RootHash string
}

// ReadRun returns a run with its results ordered by index.
// Returns ErrNotFound if no run has the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_hash, context, max_order, context_hash, root_hash, points, seq, engine_version
		FROM runs
		WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}

	rec.Results, err = s.readResults(ctx, id)
	if err != nil {
		return ir.RunRecord{}, err
	}
	return rec, nil
}

func (s *Store) readResults(ctx context.Context, runID string) ([]ir.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, deriv, is_constant, value
		FROM results
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ir.ResultRecord{}
	for rows.Next() {
		var (
			r     ir.ResultRecord
			value string
		)
		if err := rows.Scan(&r.Index, &r.Deriv, &r.Constant, &value); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.Value, err = unmarshalValue(value, r.Constant); err != nil {
			return nil, fmt.Errorf("result %s: %w", r.Deriv, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// ListRuns returns run headers (without results) matching f.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_hash, context, max_order, context_hash, root_hash, points, seq, engine_version
		FROM runs
		WHERE (? = '' OR context = ?) AND (? = '' OR root_hash = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, f.Context, f.Context, f.RootHash, f.RootHash)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadExpressions returns every stored expression ordered by name, then hash.
func (s *Store) ReadExpressions(ctx context.Context) ([]ir.ExpressionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, canonical, ir_version
		FROM expressions
		ORDER BY name COLLATE BINARY ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query expressions: %w", err)
	}
	defer rows.Close()

	exprs := []ir.ExpressionRecord{}
	for rows.Next() {
		var e ir.ExpressionRecord
		if err := rows.Scan(&e.Hash, &e.Name, &e.Canonical, &e.IRVersion); err != nil {
			return nil, fmt.Errorf("scan expression: %w", err)
		}
		exprs = append(exprs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expressions: %w", err)
	}
	return exprs, nil
}

// GetLastSeq returns the highest seq recorded, or 0 for an empty store.
// Used to resume the evaluator's logical clock across processes.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.RunRecord, error) {
	var rec ir.RunRecord
	err := row.Scan(
		&rec.ID,
		&rec.Hash,
		&rec.Context,
		&rec.MaxOrder,
		&rec.ContextHash,
		&rec.RootHash,
		&rec.Points,
		&rec.Seq,
		&rec.EngineVersion,
	)
	return rec, err
}
