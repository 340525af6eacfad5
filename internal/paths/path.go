package paths

import (
	"slices"
	"time"

	"github.com/abhisek/pathwise/internal/graph"
)

// PathType describes the intent of a learning path.
type PathType string

const (
	TypeComprehensive PathType = "comprehensive"
	TypeAccelerated   PathType = "accelerated"
	TypeApplication   PathType = "application"
	TypeCustom        PathType = "custom"
)

// Valid reports whether t is a known path type.
func (t PathType) Valid() bool {
	switch t {
	case TypeComprehensive, TypeAccelerated, TypeApplication, TypeCustom:
		return true
	default:
		return false
	}
}

// LearningPath is a named, ordered, pre-authored route through a course.
type LearningPath struct {
	ID               string           `json:"id" yaml:"id"`
	CourseID         string           `json:"courseId" yaml:"courseId"`
	Name             string           `json:"name" yaml:"name"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	Type             PathType         `json:"type" yaml:"type"`
	TargetDifficulty graph.Difficulty `json:"targetDifficulty" yaml:"targetDifficulty"`
	EstimatedMinutes int              `json:"estimatedMinutes" yaml:"estimatedMinutes"`
	NodeSequence     []string         `json:"nodeSequence" yaml:"nodeSequence"`
	CreatedAt        time.Time        `json:"createdAt" yaml:"createdAt"`
}

// Contains reports whether nodeID is part of the path.
func (p LearningPath) Contains(nodeID string) bool {
	return slices.Contains(p.NodeSequence, nodeID)
}

// IndexOf returns the position of nodeID in the sequence, or -1.
func (p LearningPath) IndexOf(nodeID string) int {
	return slices.Index(p.NodeSequence, nodeID)
}

// FirstIncomplete returns the index of the first node in the sequence not in
// completed, or len(NodeSequence) when every node is completed.
func (p LearningPath) FirstIncomplete(completed map[string]bool) int {
	for i, id := range p.NodeSequence {
		if !completed[id] {
			return i
		}
	}
	return len(p.NodeSequence)
}

// CompletedSubset returns the path's nodes that are in completed, in
// sequence order.
func (p LearningPath) CompletedSubset(completed map[string]bool) []string {
	out := []string{}
	for _, id := range p.NodeSequence {
		if completed[id] {
			out = append(out, id)
		}
	}
	return out
}

func clonePath(p LearningPath) LearningPath {
	p.NodeSequence = slices.Clone(p.NodeSequence)
	return p
}
