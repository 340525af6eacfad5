package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
)

//go:embed sample/sat-math.yaml
var sampleYAML []byte

// Course is a loaded, validated course. It is immutable; a content update
// replaces the whole value.
type Course struct {
	ID          string
	Version     string
	LastUpdated time.Time
	Source      string
	Graph       *graph.Store
	Catalog     *paths.Catalog
}

// Build validates doc and builds its graph and catalog.
//
// A graph validation failure is fatal and returns a nil course. Rejected
// paths are not: the course is returned with the valid paths alongside a
// *paths.LoadError.
func Build(doc Document) (*Course, error) {
	g, err := graph.Load(doc.CourseID, doc.Nodes, doc.Relationships)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", doc.CourseID, err)
	}
	cat, pathErr := paths.Load(doc.PredefinedPaths, g)
	c := &Course{
		ID:          doc.CourseID,
		Version:     doc.Version,
		LastUpdated: doc.LastUpdated,
		Graph:       g,
		Catalog:     cat,
	}
	if pathErr != nil {
		return c, fmt.Errorf("course %s: %w", doc.CourseID, pathErr)
	}
	return c, nil
}

// LoadFile reads and builds the course at path. Like Build it may return a
// usable course together with a *paths.LoadError.
func LoadFile(path string) (*Course, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Build(doc)
	if c != nil {
		c.Source = path
	}
	return c, err
}

// Sample returns the built-in SAT math course.
func Sample() (*Course, error) {
	doc, err := Parse(sampleYAML, FormatYAML)
	if err != nil {
		return nil, err
	}
	c, err := Build(doc)
	if err != nil {
		return nil, err
	}
	c.Source = "builtin:sat-math"
	return c, nil
}

// LoadDir loads every .json, .yaml and .yml file directly under dir, sorted
// by course id. Files that fail to load are reported in the joined error
// while the rest are still returned; a course with rejected paths is both
// returned and reported. Two files declaring the same course id are an
// error for the later file in name order.
func LoadDir(dir string) ([]*Course, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var (
		courses []*Course
		errs    []error
		seen    = map[string]string{}
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(e.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		c, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
		}
		if c == nil {
			continue
		}
		if prev, dup := seen[c.ID]; dup {
			errs = append(errs, &DocumentError{Source: path, Err: fmt.Errorf("course %s already loaded from %s", c.ID, prev)})
			continue
		}
		seen[c.ID] = path
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, errors.Join(errs...)
}
