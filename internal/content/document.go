// Package content reads course content documents and builds the immutable
// graph and path catalog for a course.
package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
)

//go:embed course.schema.json
var schemaJSON []byte

const schemaURL = "schema://pathwise/course.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// relationshipNamespace seeds ids generated for relationships authored
// without one.
var relationshipNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://pathwise.dev/relationship"))

// Format is the encoding of a content document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks a format by file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return 0, false
	}
}

// Document is a course content document as authored.
type Document struct {
	CourseID        string               `json:"courseId"`
	Version         string               `json:"version"`
	LastUpdated     time.Time            `json:"lastUpdated"`
	Nodes           []graph.Node         `json:"nodes"`
	Relationships   []graph.Relationship `json:"relationships"`
	PredefinedPaths []paths.LearningPath `json:"predefinedPaths"`
}

// DocumentError reports a document that could not be read, failed the
// schema, or carries a malformed version.
type DocumentError struct {
	Source string
	Err    error
}

func (e *DocumentError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("content: %v", e.Err)
	}
	return fmt.Sprintf("content %s: %v", e.Source, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Parse decodes and schema-checks a document. Relationships without an id
// get one derived from their endpoints and type, so reloading the same
// document yields the same ids.
func Parse(data []byte, format Format) (Document, error) {
	raw := data
	if format == FormatYAML {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return Document{}, &DocumentError{Err: fmt.Errorf("parse yaml: %w", err)}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return Document{}, &DocumentError{Err: fmt.Errorf("convert yaml: %w", err)}
		}
		raw = b
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Document{}, &DocumentError{Err: fmt.Errorf("parse json: %w", err)}
	}
	sch, err := courseSchema()
	if err != nil {
		return Document{}, &DocumentError{Err: err}
	}
	if err := sch.Validate(inst); err != nil {
		return Document{}, &DocumentError{Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, &DocumentError{Err: fmt.Errorf("decode: %w", err)}
	}
	if !ValidVersion(doc.Version) {
		return Document{}, &DocumentError{Err: fmt.Errorf("version %q is not a semantic version", doc.Version)}
	}
	for i := range doc.Relationships {
		r := &doc.Relationships[i]
		if r.ID == "" {
			key := r.SourceID + "|" + r.TargetID + "|" + string(r.Type)
			r.ID = uuid.NewSHA1(relationshipNamespace, []byte(key)).String()
		}
	}
	return doc, nil
}

// ReadFile reads and parses the document at path.
func ReadFile(path string) (Document, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return Document{}, &DocumentError{Source: path, Err: errors.New("unsupported file extension")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &DocumentError{Source: path, Err: err}
	}
	doc, err := Parse(data, format)
	if err != nil {
		var de *DocumentError
		if errors.As(err, &de) {
			de.Source = path
		}
		return Document{}, err
	}
	return doc, nil
}

func courseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		c.AssertFormat()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidVersion reports whether v is a semantic version. The leading "v" is
// optional.
func ValidVersion(v string) bool {
	return semver.IsValid(canonical(v))
}

// CompareVersions compares two course versions like semver.Compare. Invalid
// versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

func canonical(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
