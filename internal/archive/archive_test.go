package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
	"github.com/MeKo-Tech/surfacegen/internal/material"
)

func fakeMaps() map[generator.MapKind][]byte {
	return map[generator.MapKind][]byte{
		generator.MapAlbedo:    []byte("albedo png"),
		generator.MapNormal:    []byte("normal png"),
		generator.MapRoughness: []byte("roughness png"),
	}
}

func testRecord(seed int64) SetRecord {
	p := generator.DefaultParams()
	p.Material = material.Dirt
	p.Seed = &seed
	return SetRecord{
		Material:   p.Material.String(),
		Params:     p,
		Stats:      generator.Stats{HeightMean: 0.5, PebbleCoverage: 0.12},
		Resolution: p.Resolution,
		Seed:       seed,
		Elapsed:    1500 * time.Millisecond,
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sets.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sets.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	for _, table := range []string{"sets", "maps"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query schema: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected %s table to exist, got count=%d", table, count)
		}
	}
}

func TestStore_PutGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, testRecord(42), fakeMaps())
	if err != nil {
		t.Fatalf("Failed to put set: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Expected UUID id, got %q: %v", id, err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get set: %v", err)
	}
	if rec.ID != id || rec.Material != "dirt" || rec.Resolution != 1024 || rec.Seed != 42 {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Params.Material != material.Dirt || rec.Params.Seed == nil || *rec.Params.Seed != 42 {
		t.Errorf("Params did not round trip: %+v", rec.Params)
	}
	if rec.Stats.PebbleCoverage != 0.12 {
		t.Errorf("Expected pebble coverage 0.12, got %v", rec.Stats.PebbleCoverage)
	}
	if rec.Elapsed != 1500*time.Millisecond {
		t.Errorf("Expected elapsed 1.5s, got %v", rec.Elapsed)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	for kind, want := range fakeMaps() {
		got, err := s.Map(ctx, id, kind)
		if err != nil {
			t.Fatalf("Failed to read %s map: %v", kind, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s map: got %q, want %q", kind, got, want)
		}
	}
}

func TestStore_PutRequiresAllMaps(t *testing.T) {
	s := newStore(t)
	maps := fakeMaps()
	delete(maps, generator.MapNormal)

	if _, err := s.Put(context.Background(), testRecord(1), maps); err == nil {
		t.Fatal("Expected error for missing normal map")
	}

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected empty archive, got %d sets", len(list))
	}
}

func TestStore_NotFound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Map(ctx, "missing", generator.MapAlbedo); !errors.Is(err, ErrNotFound) {
		t.Errorf("Map: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := testRecord(int64(i))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		id, err := s.Put(ctx, rec, fakeMaps())
		if err != nil {
			t.Fatalf("Failed to put set %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 sets, got %d", len(list))
	}
	for i, rec := range list {
		if want := ids[2-i]; rec.ID != want {
			t.Errorf("Position %d: got %s, want %s", i, rec.ID, want)
		}
	}
	if !list[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt did not round trip: %v", list[2].CreatedAt)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, testRecord(3), fakeMaps())
	if err != nil {
		t.Fatalf("Failed to put set: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Failed to delete set: %v", err)
	}
	if _, err := s.Map(ctx, id, generator.MapRoughness); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected maps to be deleted, got %v", err)
	}
}

func TestOpenReader(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sets.db")
	w, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	id, err := w.Put(context.Background(), testRecord(7), fakeMaps())
	if err != nil {
		t.Fatalf("Failed to put set: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	rec, err := r.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to get set: %v", err)
	}
	if rec.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", rec.Seed)
	}
	if _, err := r.Put(context.Background(), testRecord(8), fakeMaps()); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
}

func TestOpenReader_MissingSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(dbPath); err == nil {
		t.Fatal("Expected error for database without sets table")
	}
}

func TestRecordFor(t *testing.T) {
	p := generator.DefaultParams()
	rec := RecordFor(&generator.Maps{Params: p, Seed: 11, Elapsed: time.Second})
	if rec.Material != "grass" || rec.Resolution != 1024 || rec.Seed != 11 || rec.Elapsed != time.Second {
		t.Errorf("Unexpected record: %+v", rec)
	}
}
