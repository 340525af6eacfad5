package progress

import (
	"fmt"

	"github.com/abhisek/pathwise/internal/paths"
)

// Merge reconciles two versions of the same learner's progress written
// concurrently. Completion is monotonic, so completed nodes are the union
// (a's order first, then b's additions). The path selection of whichever
// side was updated last wins (a on ties), and its path progress is rebuilt
// from the union (kept as is when the path is no longer in c). StartedAt is the earliest of both sides when they follow
// the same path. Recommendations are cleared; callers recompute them.
func Merge(c *paths.Catalog, a, b Progress) (Progress, error) {
	if a.UserID != b.UserID || a.CourseID != b.CourseID {
		return Progress{}, fmt.Errorf("merge: progress for %s/%s and %s/%s", a.UserID, a.CourseID, b.UserID, b.CourseID)
	}

	out := a.Clone()
	seen := a.CompletedSet()
	for _, id := range b.CompletedNodes {
		if !seen[id] {
			seen[id] = true
			out.CompletedNodes = append(out.CompletedNodes, id)
		}
	}

	latest, other := a, b
	if b.UpdatedAt.After(a.UpdatedAt) {
		latest, other = b, a
	}
	out.UpdatedAt = latest.UpdatedAt
	out.CurrentPathID = latest.CurrentPathID
	out.PathProgress = nil
	out.RecommendedNextNodes = []string{}

	if latest.CurrentPathID != "" && latest.PathProgress != nil {
		pp := *latest.PathProgress
		if other.PathProgress != nil && other.PathProgress.PathID == pp.PathID &&
			!other.PathProgress.StartedAt.IsZero() && other.PathProgress.StartedAt.Before(pp.StartedAt) {
			pp.StartedAt = other.PathProgress.StartedAt
		}
		// A current path missing from the catalog predates a content update;
		// its progress is carried over as is.
		if path, err := c.GetPath(latest.CurrentPathID); err == nil {
			pp.CompletedNodes = path.CompletedSubset(seen)
			pp.CurrentNodeIndex = path.FirstIncomplete(seen)
		} else {
			pp.CompletedNodes = append([]string{}, pp.CompletedNodes...)
		}
		out.PathProgress = &pp
	}
	return out, nil
}
