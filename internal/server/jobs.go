package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

// JobState is the lifecycle of a generation request.
type JobState string

const (
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job is a snapshot of one generation request.
type Job struct {
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Params     generator.Params `json:"params"`
	ID         string           `json:"id"`
	State      JobState         `json:"state"`
	Stage      string           `json:"stage,omitempty"`
	Label      string           `json:"label,omitempty"`
	Error      string           `json:"error,omitempty"`
	SetID      string           `json:"set_id,omitempty"`
	Seed       int64            `json:"seed,omitempty"`
}

// jobs keeps the most recent jobs in memory.
type jobs struct {
	byID  map[string]*Job
	order []string
	limit int
	mu    sync.RWMutex
}

func newJobs(limit int) *jobs {
	if limit <= 0 {
		limit = 100
	}
	return &jobs{byID: make(map[string]*Job), limit: limit}
}

func (j *jobs) start(p generator.Params) Job {
	job := &Job{
		ID:        uuid.NewString(),
		State:     JobRunning,
		Params:    p,
		CreatedAt: time.Now(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.byID[job.ID] = job
	j.order = append(j.order, job.ID)
	for len(j.order) > j.limit {
		delete(j.byID, j.order[0])
		j.order = j.order[1:]
	}
	return *job
}

func (j *jobs) update(id string, fn func(*Job)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.byID[id]; ok {
		fn(job)
	}
}

func (j *jobs) get(id string) (Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.byID[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
