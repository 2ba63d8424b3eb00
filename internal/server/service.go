// Package server exposes material set generation over HTTP with websocket
// progress and archive-backed downloads.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/surfacegen/internal/archive"
	"github.com/MeKo-Tech/surfacegen/internal/export"
	"github.com/MeKo-Tech/surfacegen/internal/generator"
	"github.com/MeKo-Tech/surfacegen/internal/resample"
)

const maxRequestBody = 1 << 20

// Config configures the generation service.
type Config struct {
	Archive           *archive.Store
	Resampler         resample.Resampler
	PNGCompression    string
	CacheControl      string
	GenerationTimeout time.Duration
	MemoryBudget      uint64
	// JobHistory is how many finished jobs stay queryable.
	JobHistory int
}

// Service runs at most one generation at a time and stores every result
// in the archive.
type Service struct {
	gen    *generator.Generator
	store  *archive.Store
	hub    *Hub
	jobs   *jobs
	logger *slog.Logger
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	wg     sync.WaitGroup
}

// NewService creates the service. cfg.Archive is required.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.Archive == nil {
		return nil, errors.New("server needs an archive")
	}
	if _, err := export.ParseCompression(cfg.PNGCompression); err != nil {
		return nil, err
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 10 * time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		gen: generator.New(generator.Options{
			Resampler:    cfg.Resampler,
			Logger:       logger,
			MemoryBudget: cfg.MemoryBudget,
		}),
		store:  cfg.Archive,
		hub:    NewHub(logger),
		jobs:   newJobs(cfg.JobHistory),
		logger: logger,
		sem:    make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}, nil
}

// Handler returns the service routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /api/sets", s.handleSets)
	mux.HandleFunc("GET /api/sets/{id}", s.handleSet)
	mux.HandleFunc("GET /api/sets/{id}/{map}", s.handleMap)
	mux.Handle("GET /api/progress", s.hub)
	return withCORS(mux)
}

// Stop cancels a running generation, waits for it and disconnects clients.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.hub.Close()
}

// Busy reports whether a generation is running.
func (s *Service) Busy() bool { return len(s.sem) > 0 }

func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	p := generator.DefaultParams()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		writeError(w, http.StatusConflict, generator.ErrBusy.Error())
		return
	}

	job := s.jobs.start(p)
	s.log().Info("Generation requested", "job", job.ID, "material", p.Material.String(), "resolution", p.Resolution)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.run(job.ID, p)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

func (s *Service) run(id string, p generator.Params) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.GenerationTimeout)
	defer cancel()

	maps, err := s.gen.Generate(ctx, p, func(e generator.Event) {
		s.jobs.update(id, func(j *Job) {
			j.Stage = e.Stage.String()
			j.Label = e.Label
		})
		s.hub.Broadcast(ProgressMessage{
			Job:     id,
			Stage:   e.Stage.String(),
			Label:   e.Label,
			Octave:  e.Octave,
			Octaves: e.Octaves,
		})
	})

	var setID string
	if err == nil {
		setID, err = s.archive(ctx, maps)
	}

	now := time.Now()
	if err != nil {
		s.log().Error("Generation job failed", "job", id, "error", err)
		s.jobs.update(id, func(j *Job) {
			j.State = JobFailed
			j.Error = err.Error()
			j.FinishedAt = &now
		})
		s.hub.Broadcast(ProgressMessage{Job: id, Stage: string(JobFailed), Label: "Failed", Error: err.Error()})
		return
	}

	s.jobs.update(id, func(j *Job) {
		j.State = JobDone
		j.SetID = setID
		j.Seed = maps.Seed
		j.FinishedAt = &now
	})
	s.hub.Broadcast(ProgressMessage{Job: id, Stage: "archived", Label: "Saved", SetID: setID})
	s.log().Info("Generation job finished", "job", id, "set", setID, "elapsed", maps.Elapsed.Round(time.Millisecond))
}

func (s *Service) archive(ctx context.Context, maps *generator.Maps) (string, error) {
	encoded, err := export.EncodeSet(maps, s.cfg.PNGCompression)
	if err != nil {
		return "", err
	}
	return s.store.Put(ctx, archive.RecordFor(maps), encoded)
}

func (s *Service) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Service) handleSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.store.List(r.Context())
	if err != nil {
		s.log().Error("Failed to list sets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sets")
		return
	}
	if sets == nil {
		sets = []archive.SetRecord{}
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Service) handleSet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Service) handleMap(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("map"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	kind, err := generator.ParseMapKind(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data, err := s.store.Map(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	if _, err := w.Write(data); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}

func (s *Service) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log().Error("Archive read failed", "error", err)
	writeError(w, http.StatusInternalServerError, "archive read failed")
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
