package worker

import (
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
	"github.com/MeKo-Tech/surfacegen/internal/material"
)

// Task is one set to generate.
type Task struct {
	// Name identifies the set, e.g. "grass_1024_02".
	Name string
	// Out is the export base path; empty when the set is only archived.
	Out    string
	Params generator.Params
	Index  int
}

// Plan describes a batch as the product materials × resolutions × count.
type Plan struct {
	Base        generator.Params
	OutDir      string
	Materials   []material.Kind
	Resolutions []int
	Count       int
}

// Tasks expands the plan. When Base.Seed is set, task i gets seed Base.Seed+i
// so the whole batch is reproducible; otherwise every task draws its own.
func (pl Plan) Tasks() ([]Task, error) {
	if len(pl.Materials) == 0 {
		return nil, fmt.Errorf("no materials")
	}
	if len(pl.Resolutions) == 0 {
		return nil, fmt.Errorf("no resolutions")
	}
	if pl.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", pl.Count)
	}

	tasks := make([]Task, 0, len(pl.Materials)*len(pl.Resolutions)*pl.Count)
	for _, m := range pl.Materials {
		for _, res := range pl.Resolutions {
			for i := 1; i <= pl.Count; i++ {
				p := pl.Base
				p.Material = m
				p.Resolution = res
				if pl.Base.Seed != nil {
					seed := *pl.Base.Seed + int64(len(tasks))
					p.Seed = &seed
				}
				if err := p.Validate(); err != nil {
					return nil, err
				}

				name := fmt.Sprintf("%s_%d_%02d", m, res, i)
				t := Task{Name: name, Params: p, Index: len(tasks)}
				if pl.OutDir != "" {
					t.Out = filepath.Join(pl.OutDir, name)
				}
				tasks = append(tasks, t)
			}
		}
	}
	return tasks, nil
}
