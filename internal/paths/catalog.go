package paths

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/abhisek/pathwise/internal/graph"
)

// Catalog holds the validated learning paths of one course. It is immutable
// after Load.
type Catalog struct {
	courseID string
	paths    []LearningPath // ordered by name, then id
	byID     map[string]int
}

// LoadError lists the paths rejected by Load. Each rejection is fatal for
// that path only.
type LoadError struct {
	Rejected map[string]error // path id -> reason
}

func (e *LoadError) Error() string {
	ids := e.IDs()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Rejected[id]))
	}
	return fmt.Sprintf("%d learning path(s) rejected:\n  %s", len(ids), strings.Join(parts, "\n  "))
}

// IDs returns the rejected path ids, sorted.
func (e *LoadError) IDs() []string {
	ids := make([]string, 0, len(e.Rejected))
	for id := range e.Rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unwrap exposes the per-path errors so errors.As and graph.HasKind see them.
func (e *LoadError) Unwrap() []error {
	out := make([]error, 0, len(e.Rejected))
	for _, id := range e.IDs() {
		out = append(out, e.Rejected[id])
	}
	return out
}

// Load validates paths against g. Paths that reference a node absent from g
// (UnknownNodeInPath), are empty, repeat a node, repeat an id or belong to
// another course are left out. The returned catalog is never nil; when any
// path was rejected the error is a *LoadError.
//
// A path with no CourseID is assigned g's course. A zero EstimatedMinutes is
// filled with the sum of the path's node estimates.
func Load(paths []LearningPath, g *graph.Store) (*Catalog, error) {
	c := &Catalog{
		courseID: g.CourseID(),
		byID:     make(map[string]int, len(paths)),
	}
	rejected := make(map[string]error)

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = clonePath(p)
		if p.CourseID == "" {
			p.CourseID = g.CourseID()
		}
		if seen[p.ID] {
			rejected[p.ID] = &graph.ValidationError{Kind: graph.KindDuplicateID, IDs: []string{p.ID}}
			continue
		}
		seen[p.ID] = true

		if err := validatePath(p, g); err != nil {
			rejected[p.ID] = err
			continue
		}
		if p.EstimatedMinutes == 0 {
			p.EstimatedMinutes = g.TotalMinutes(p.NodeSequence)
		}
		c.paths = append(c.paths, p)
	}

	// A duplicate id rejects every path carrying it.
	for id, err := range rejected {
		var ve *graph.ValidationError
		if errors.As(err, &ve) && ve.Kind == graph.KindDuplicateID {
			c.paths = removeID(c.paths, id)
		}
	}

	sort.Slice(c.paths, func(i, j int) bool {
		if c.paths[i].Name != c.paths[j].Name {
			return c.paths[i].Name < c.paths[j].Name
		}
		return c.paths[i].ID < c.paths[j].ID
	})
	for i := range c.paths {
		c.byID[c.paths[i].ID] = i
	}

	if len(rejected) > 0 {
		return c, &LoadError{Rejected: rejected}
	}
	return c, nil
}

func validatePath(p LearningPath, g *graph.Store) error {
	if p.ID == "" {
		return &graph.ValidationError{Kind: graph.KindInvalidField, IDs: []string{p.Name}, Detail: "path id must not be empty"}
	}
	if p.CourseID != g.CourseID() {
		return &graph.CourseMismatchError{Want: g.CourseID(), Got: p.CourseID}
	}
	if len(p.NodeSequence) == 0 {
		return &graph.ValidationError{Kind: graph.KindEmptyPath, IDs: []string{p.ID}}
	}
	if p.Type != "" && !p.Type.Valid() {
		return &graph.ValidationError{Kind: graph.KindInvalidField, IDs: []string{p.ID}, Detail: fmt.Sprintf("unknown path type %q", p.Type)}
	}
	if p.TargetDifficulty != "" && !p.TargetDifficulty.Valid() {
		return &graph.ValidationError{Kind: graph.KindInvalidField, IDs: []string{p.ID}, Detail: fmt.Sprintf("unknown target difficulty %q", p.TargetDifficulty)}
	}
	if p.EstimatedMinutes < 0 {
		return &graph.ValidationError{Kind: graph.KindInvalidField, IDs: []string{p.ID}, Detail: "estimatedMinutes must be >= 0"}
	}

	var unknown, dups []string
	inPath := make(map[string]bool, len(p.NodeSequence))
	for _, id := range p.NodeSequence {
		if inPath[id] {
			dups = append(dups, id)
		}
		inPath[id] = true
		if !g.Has(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &graph.ValidationError{Kind: graph.KindUnknownNodeInPath, IDs: unknown, Detail: "path " + p.ID}
	}
	if len(dups) > 0 {
		return &graph.ValidationError{Kind: graph.KindDuplicateNodeInPath, IDs: dups, Detail: "path " + p.ID}
	}
	return nil
}

func removeID(paths []LearningPath, id string) []LearningPath {
	out := paths[:0]
	for _, p := range paths {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// CourseID returns the course the catalog belongs to.
func (c *Catalog) CourseID() string { return c.courseID }

// Len returns the number of loaded paths.
func (c *Catalog) Len() int { return len(c.paths) }

// GetPath returns a path by id, or a *graph.NotFoundError.
func (c *Catalog) GetPath(id string) (LearningPath, error) {
	i, ok := c.byID[id]
	if !ok {
		return LearningPath{}, &graph.NotFoundError{Kind: "path", ID: id}
	}
	return clonePath(c.paths[i]), nil
}

// ListPaths returns all paths ordered by name, then id.
func (c *Catalog) ListPaths() []LearningPath {
	out := make([]LearningPath, len(c.paths))
	for i := range c.paths {
		out[i] = clonePath(c.paths[i])
	}
	return out
}

// ByDifficulty returns the paths targeting difficulty d, in ListPaths order.
func (c *Catalog) ByDifficulty(d graph.Difficulty) []LearningPath {
	var out []LearningPath
	for i := range c.paths {
		if c.paths[i].TargetDifficulty == d {
			out = append(out, clonePath(c.paths[i]))
		}
	}
	return out
}
