package recommend

import (
	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
	"github.com/abhisek/pathwise/internal/progress"
)

// PathPercent returns how much of the learner's current path is completed,
// as an integer percentage rounded down. It is 0 without a current path.
func PathPercent(c *paths.Catalog, p progress.Progress) (int, error) {
	if p.CurrentPathID == "" {
		return 0, nil
	}
	if p.CourseID != c.CourseID() {
		return 0, &graph.CourseMismatchError{Want: c.CourseID(), Got: p.CourseID}
	}
	path, err := c.GetPath(p.CurrentPathID)
	if err != nil {
		return 0, err
	}
	return Percent(path, p), nil
}

// Percent returns the completed share of path for p, rounded down.
func Percent(path paths.LearningPath, p progress.Progress) int {
	if len(path.NodeSequence) == 0 {
		return 0
	}
	done := len(path.CompletedSubset(p.CompletedSet()))
	return done * 100 / len(path.NodeSequence)
}
