package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Job is one unit of periodic work. Names are stable identifiers used in
// logs, metrics labels and the operator CLI.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order and rejects duplicate names.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

// NewRegistry registers jobs in order. Nil jobs are skipped; a duplicate name
// keeps the first registration.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		_ = registry.Register(job)
	}
	return registry
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	name := job.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.byName[name] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[strings.TrimSpace(name)]
	return job, ok
}

// Names lists registered job names alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select narrows the registry to the named jobs, preserving registration
// order. An empty selection returns the full registry.
func (r *Registry) Select(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.Lookup(name); !ok {
			return nil, fmt.Errorf("unknown cron job %q (known: %s)", name, strings.Join(r.Names(), ", "))
		}
		wanted[strings.TrimSpace(name)] = true
	}
	selected := NewRegistry()
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			_ = selected.Register(job)
		}
	}
	return selected, nil
}
