package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

const selectSet = "SELECT id, material, resolution, seed, params, stats, elapsed_ms, created_at FROM sets"

type scanner interface {
	Scan(dest ...any) error
}

// Get reads the record of one set.
func (s *Store) Get(ctx context.Context, id string) (SetRecord, error) {
	rec, err := scanSet(s.db.QueryRowContext(ctx, selectSet+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return SetRecord{}, fmt.Errorf("set %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SetRecord{}, fmt.Errorf("failed to query set %s: %w", id, err)
	}
	return rec, nil
}

// Map returns the encoded PNG of one map of a set.
func (s *Store) Map(ctx context.Context, id string, kind generator.MapKind) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT png FROM maps WHERE set_id = ? AND kind = ?", id, string(kind),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s map of set %s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query map: %w", err)
	}
	return data, nil
}

// List returns every set, newest first.
func (s *Store) List(ctx context.Context) ([]SetRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectSet+" ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sets: %w", err)
	}
	defer rows.Close()

	var out []SetRecord
	for rows.Next() {
		rec, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sets: %w", err)
	}
	return out, nil
}

func scanSet(row scanner) (SetRecord, error) {
	var (
		rec           SetRecord
		params, stats string
		elapsedMs     int64
		created       int64
	)
	if err := row.Scan(&rec.ID, &rec.Material, &rec.Resolution, &rec.Seed, &params, &stats, &elapsedMs, &created); err != nil {
		return SetRecord{}, err
	}
	if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
		return SetRecord{}, fmt.Errorf("failed to decode params of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(stats), &rec.Stats); err != nil {
		return SetRecord{}, fmt.Errorf("failed to decode stats of %s: %w", rec.ID, err)
	}
	rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	rec.CreatedAt = time.Unix(0, created)
	return rec, nil
}
