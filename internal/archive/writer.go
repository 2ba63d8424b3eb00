package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

// Put stores a set and its encoded maps in one transaction and returns the
// set id. A missing rec.ID gets a fresh UUID; a zero CreatedAt becomes now.
// All three map kinds are required.
func (s *Store) Put(ctx context.Context, rec SetRecord, maps map[generator.MapKind][]byte) (string, error) {
	if s.readOnly {
		return "", ErrReadOnly
	}
	for _, kind := range generator.MapKinds() {
		if len(maps[kind]) == 0 {
			return "", fmt.Errorf("missing %s map", kind)
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	params, err := json.Marshal(rec.Params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return "", fmt.Errorf("failed to encode stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sets (id, material, resolution, seed, params, stats, elapsed_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Material, rec.Resolution, rec.Seed, string(params), string(stats),
		rec.Elapsed.Milliseconds(), rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert set %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO maps (set_id, kind, png) VALUES (?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, kind := range generator.MapKinds() {
		if _, err := stmt.ExecContext(ctx, rec.ID, string(kind), maps[kind]); err != nil {
			return "", fmt.Errorf("failed to insert %s map of %s: %w", kind, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec.ID, nil
}

// Delete removes a set and its maps.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.readOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM maps WHERE set_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete maps of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete set %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
