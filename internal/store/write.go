package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/qsnake/trilinos-sub010/internal/ir"
)

// WriteExpression records a named expression.
// Uses ON CONFLICT DO NOTHING for idempotency: the same (hash, name) pair
// is stored once. A hash may be stored under several names.
func (s *Store) WriteExpression(ctx context.Context, rec ir.ExpressionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expressions (hash, name, canonical, ir_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash, name) DO NOTHING
	`, rec.Hash, rec.Name, rec.Canonical, rec.IRVersion)
	if err != nil {
		return fmt.Errorf("write expression: %w", err)
	}
	return nil
}

// WriteRun records a run and its results in one transaction and returns
// the run ID. An empty rec.ID is replaced with a fresh UUIDv7.
func (s *Store) WriteRun(ctx context.Context, rec ir.RunRecord) (string, error) {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("write run: generate id: %w", err)
		}
		rec.ID = id.String()
	}

	values := make([]string, len(rec.Results))
	for i, r := range rec.Results {
		v, err := marshalValue(r.Value)
		if err != nil {
			return "", fmt.Errorf("write run: result %s: %w", r.Deriv, err)
		}
		values[i] = v
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, run_hash, context, max_order, context_hash, root_hash, points, seq, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Hash,
		rec.Context,
		rec.MaxOrder,
		rec.ContextHash,
		rec.RootHash,
		rec.Points,
		rec.Seq,
		rec.EngineVersion,
	)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	for i, r := range rec.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (run_id, idx, deriv, is_constant, value)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, r.Index, r.Deriv, r.Constant, values[i])
		if err != nil {
			return "", fmt.Errorf("write run: result %s: %w", r.Deriv, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write run: commit: %w", err)
	}
	return rec.ID, nil
}
