package progress

import (
	"encoding/json"
	"slices"
	"time"
)

// PathProgress is a learner's position within their current path.
type PathProgress struct {
	PathID           string    `json:"pathId"`
	CurrentNodeIndex int       `json:"currentNodeIndex"`
	CompletedNodes   []string  `json:"completedNodes"`
	StartedAt        time.Time `json:"startedAt"`
	LastAccessedAt   time.Time `json:"lastAccessedAt"`
}

// Progress is one learner's state in one course. It is both the persisted
// form and the envelope returned to callers.
type Progress struct {
	UserID               string        `json:"userId"`
	CourseID             string        `json:"courseId"`
	CompletedNodes       []string      `json:"completedNodes"`
	CurrentPathID        string        `json:"currentPathId"`
	PathProgress         *PathProgress `json:"pathProgress"`
	RecommendedNextNodes []string      `json:"recommendedNextNodes"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// New returns empty progress for a learner in a course.
func New(userID, courseID string) Progress {
	return Progress{
		UserID:               userID,
		CourseID:             courseID,
		CompletedNodes:       []string{},
		RecommendedNextNodes: []string{},
	}
}

// MarshalJSON writes an empty CurrentPathID as null.
func (p Progress) MarshalJSON() ([]byte, error) {
	type alias Progress
	var pathID *string
	if p.CurrentPathID != "" {
		pathID = &p.CurrentPathID
	}
	out := struct {
		alias
		CurrentPathID *string `json:"currentPathId"`
	}{alias: alias(p.normalized()), CurrentPathID: pathID}
	return json.Marshal(out)
}

// normalized replaces nil slices with empty ones so the envelope never
// carries null lists.
func (p Progress) normalized() Progress {
	if p.CompletedNodes == nil {
		p.CompletedNodes = []string{}
	}
	if p.RecommendedNextNodes == nil {
		p.RecommendedNextNodes = []string{}
	}
	if p.PathProgress != nil && p.PathProgress.CompletedNodes == nil {
		pp := *p.PathProgress
		pp.CompletedNodes = []string{}
		p.PathProgress = &pp
	}
	return p
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	p.CompletedNodes = slices.Clone(p.CompletedNodes)
	p.RecommendedNextNodes = slices.Clone(p.RecommendedNextNodes)
	if p.PathProgress != nil {
		pp := *p.PathProgress
		pp.CompletedNodes = slices.Clone(pp.CompletedNodes)
		p.PathProgress = &pp
	}
	return p.normalized()
}

// CompletedSet returns CompletedNodes as a set.
func (p Progress) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(p.CompletedNodes))
	for _, id := range p.CompletedNodes {
		set[id] = true
	}
	return set
}

// IsCompleted reports whether nodeID is in CompletedNodes.
func (p Progress) IsCompleted(nodeID string) bool {
	return slices.Contains(p.CompletedNodes, nodeID)
}
