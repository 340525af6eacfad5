// Package recommend computes what a learner should study next from a course
// graph and their progress.
package recommend

import (
	"sort"

	"go.uber.org/zap"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
	"github.com/abhisek/pathwise/internal/progress"
)

// Diagnostic kinds. Diagnostics are reported and skipped, never fatal.
const (
	DiagIgnoredUnknownNode = "ignoredUnknownNode"
	DiagIgnoredUnknownPath = "ignoredUnknownPath"
)

// Diagnostic notes progress data that was ignored during a computation.
type Diagnostic struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Result is an ordered recommendation.
type Result struct {
	NodeIDs     []string
	Diagnostics []Diagnostic
}

// Engine ranks available nodes. It holds no course state and is safe for
// concurrent use.
type Engine struct {
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	node    graph.Node
	pathPos int // position in the remaining path sequence, -1 when off path
	unblock int // sum of incoming prerequisite strengths from completed nodes
	impRank int
}

// RecommendNext returns the nodes the learner can study next, best first.
// Only Available nodes (not completed, every prerequisite completed) are
// returned. Nodes on the rest of the current path come first in path order;
// the others are ranked by importance, then by the total strength of
// prerequisite edges from completed nodes, then metadata.order, then id.
// limit <= 0 returns every available node.
//
// It fails with ErrCourseMismatch when p belongs to another course. Completed
// ids unknown to g and a current path unknown to c are ignored and reported
// as diagnostics.
func (e *Engine) RecommendNext(g *graph.Store, c *paths.Catalog, p progress.Progress, limit int) (Result, error) {
	if p.CourseID != g.CourseID() {
		return Result{}, &graph.CourseMismatchError{Want: g.CourseID(), Got: p.CourseID}
	}

	var res Result
	completed := make(map[string]bool, len(p.CompletedNodes))
	for _, id := range p.CompletedNodes {
		if completed[id] {
			continue
		}
		if !g.Has(id) {
			if !hasDiagnostic(res.Diagnostics, DiagIgnoredUnknownNode, id) {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagIgnoredUnknownNode, ID: id})
				e.logger.Warn(DiagIgnoredUnknownNode,
					zap.String("course_id", p.CourseID),
					zap.String("user_id", p.UserID),
					zap.String("node_id", id),
				)
			}
			continue
		}
		completed[id] = true
	}

	pathPos := map[string]int{}
	if p.CurrentPathID != "" {
		path, err := c.GetPath(p.CurrentPathID)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagIgnoredUnknownPath, ID: p.CurrentPathID})
			e.logger.Warn(DiagIgnoredUnknownPath,
				zap.String("course_id", p.CourseID),
				zap.String("user_id", p.UserID),
				zap.String("path_id", p.CurrentPathID),
			)
		} else {
			start := 0
			if p.PathProgress != nil && p.PathProgress.PathID == path.ID {
				start = clamp(p.PathProgress.CurrentNodeIndex, 0, len(path.NodeSequence))
			}
			for i, id := range path.NodeSequence[start:] {
				pathPos[id] = i
			}
		}
	}

	var cands []candidate
	for _, n := range g.Nodes() {
		if completed[n.ID] || !g.IsUnlocked(n.ID, completed) {
			continue
		}
		cd := candidate{node: n, pathPos: -1, impRank: n.Importance.Rank()}
		if pos, ok := pathPos[n.ID]; ok {
			cd.pathPos = pos
		}
		for _, link := range g.PrerequisiteLinks(n.ID) {
			if completed[link.Node.ID] {
				cd.unblock += link.Strength()
			}
		}
		cands = append(cands, cd)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		onPathA, onPathB := a.pathPos >= 0, b.pathPos >= 0
		if onPathA != onPathB {
			return onPathA
		}
		if onPathA && a.pathPos != b.pathPos {
			return a.pathPos < b.pathPos
		}
		if a.impRank != b.impRank {
			return a.impRank < b.impRank
		}
		if a.unblock != b.unblock {
			return a.unblock > b.unblock
		}
		if a.node.Metadata.Order != b.node.Metadata.Order {
			return a.node.Metadata.Order < b.node.Metadata.Order
		}
		return a.node.ID < b.node.ID
	})

	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	res.NodeIDs = make([]string, len(cands))
	for i, cd := range cands {
		res.NodeIDs[i] = cd.node.ID
	}
	return res, nil
}

// Refresh recomputes p's recommendedNextNodes.
func (e *Engine) Refresh(g *graph.Store, c *paths.Catalog, p progress.Progress, limit int) (progress.Progress, Result, error) {
	res, err := e.RecommendNext(g, c, p, limit)
	if err != nil {
		return progress.Progress{}, Result{}, err
	}
	out := p.Clone()
	out.RecommendedNextNodes = res.NodeIDs
	return out, res, nil
}

func hasDiagnostic(ds []Diagnostic, kind, id string) bool {
	for _, d := range ds {
		if d.Kind == kind && d.ID == id {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
