package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/graph"
)

// ErrStaleVersion is returned when a replacement course is older than the
// loaded one.
var ErrStaleVersion = errors.New("service: course version is older than the loaded one")

// Registry holds the courses being served. Courses are immutable; a content
// update swaps in a new value.
type Registry struct {
	mu      sync.RWMutex
	courses map[string]*content.Course
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{courses: make(map[string]*content.Course)}
}

// Register adds a course. The id must not be registered yet.
func (r *Registry) Register(c *content.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[c.ID]; ok {
		return fmt.Errorf("course %s already registered", c.ID)
	}
	r.courses[c.ID] = c
	return nil
}

// Replace adds c or swaps it in for the loaded course with the same id,
// unless the loaded version is newer.
func (r *Registry) Replace(c *content.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.courses[c.ID]; ok && content.CompareVersions(c.Version, old.Version) < 0 {
		return fmt.Errorf("course %s %s (loaded %s): %w", c.ID, c.Version, old.Version, ErrStaleVersion)
	}
	r.courses[c.ID] = c
	return nil
}

// Get returns the course with the given id.
func (r *Registry) Get(id string) (*content.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, &graph.NotFoundError{Kind: "course", ID: id}
	}
	return c, nil
}

// List returns every course sorted by id.
func (r *Registry) List() []*content.Course {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*content.Course, 0, len(r.courses))
	for _, c := range r.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of courses.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.courses)
}
