package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// validate performs all structural checks on a node and relationship set.
// Every problem class found is reported as its own *ValidationError, joined
// in severity order: duplicates, invalid fields, dangling references,
// self-loops, prerequisite cycles. The cycle check only runs when every
// edge resolves.
func validate(nodes []Node, rels []Relationship) error {
	var errs []error

	nodeSet := make(map[string]bool, len(nodes))
	var dupIDs []string
	for _, n := range nodes {
		if nodeSet[n.ID] {
			dupIDs = append(dupIDs, n.ID)
		}
		nodeSet[n.ID] = true
	}
	relSet := make(map[string]bool, len(rels))
	type edgeKey struct {
		src, dst string
		typ      RelationType
	}
	edgeSet := make(map[edgeKey]bool, len(rels))
	for _, r := range rels {
		if r.ID != "" {
			if relSet[r.ID] {
				dupIDs = append(dupIDs, r.ID)
			}
			relSet[r.ID] = true
		}
		k := edgeKey{r.SourceID, r.TargetID, r.Type}
		if edgeSet[k] {
			dupIDs = append(dupIDs, fmt.Sprintf("%s->%s[%s]", r.SourceID, r.TargetID, r.Type))
		}
		edgeSet[k] = true
	}
	if len(dupIDs) > 0 {
		errs = append(errs, &ValidationError{Kind: KindDuplicateID, IDs: dupIDs})
	}

	var invalid []string
	var details []string
	for _, n := range nodes {
		switch {
		case n.ID == "":
			invalid = append(invalid, n.ID)
			details = append(details, "node id must not be empty")
		case n.EstimatedMinutes < 0:
			invalid = append(invalid, n.ID)
			details = append(details, fmt.Sprintf("node %q: estimatedMinutes must be >= 0, got %d", n.ID, n.EstimatedMinutes))
		case !n.Difficulty.Valid():
			invalid = append(invalid, n.ID)
			details = append(details, fmt.Sprintf("node %q: unknown difficulty %q", n.ID, n.Difficulty))
		case !n.Importance.Valid():
			invalid = append(invalid, n.ID)
			details = append(details, fmt.Sprintf("node %q: unknown importance %q", n.ID, n.Importance))
		}
	}
	for _, r := range rels {
		switch {
		case r.ID == "":
			invalid = append(invalid, r.SourceID+"->"+r.TargetID)
			details = append(details, "relationship id must not be empty")
		case !r.Type.Valid():
			invalid = append(invalid, r.ID)
			details = append(details, fmt.Sprintf("relationship %q: unknown type %q", r.ID, r.Type))
		case r.Strength < MinStrength || r.Strength > MaxStrength:
			invalid = append(invalid, r.ID)
			details = append(details, fmt.Sprintf("relationship %q: strength must be in [%d, %d], got %d", r.ID, MinStrength, MaxStrength, r.Strength))
		}
	}
	if len(invalid) > 0 {
		errs = append(errs, &ValidationError{Kind: KindInvalidField, IDs: invalid, Detail: strings.Join(details, "; ")})
	}

	var dangling []string
	for _, r := range rels {
		if !nodeSet[r.SourceID] {
			dangling = append(dangling, r.SourceID)
		}
		if !nodeSet[r.TargetID] {
			dangling = append(dangling, r.TargetID)
		}
	}
	if len(dangling) > 0 {
		errs = append(errs, &ValidationError{Kind: KindDanglingReference, IDs: dangling})
	}

	var loops []string
	for _, r := range rels {
		if r.SourceID == r.TargetID {
			loops = append(loops, r.ID)
		}
	}
	if len(loops) > 0 {
		errs = append(errs, &ValidationError{Kind: KindSelfLoop, IDs: loops})
	}

	if len(dangling) == 0 && len(loops) == 0 {
		if cycle := findPrerequisiteCycle(nodes, rels); cycle != nil {
			errs = append(errs, &ValidationError{Kind: KindPrerequisiteCycle, IDs: cycle})
		}
	}

	return errors.Join(errs...)
}

// findPrerequisiteCycle runs a depth-first traversal over prerequisite edges
// keeping the current recursion stack. Reaching a node that is still on the
// stack closes a cycle, which is returned as the node ids from the repeated
// node around to itself. Returns nil when the prerequisite subgraph is
// acyclic. Traversal order is by node id so the reported cycle is stable.
func findPrerequisiteCycle(nodes []Node, rels []Relationship) []string {
	adj := make(map[string][]string)
	for _, r := range rels {
		if r.Type == RelationPrerequisite {
			adj[r.SourceID] = append(adj[r.SourceID], r.TargetID)
		}
	}
	for id := range adj {
		sort.Strings(adj[id])
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	onStack := make(map[string]int) // id -> position in stack
	visited := make(map[string]bool)
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		onStack[id] = len(stack)
		stack = append(stack, id)
		for _, next := range adj[id] {
			if pos, ok := onStack[next]; ok {
				cycle := append([]string(nil), stack[pos:]...)
				return append(cycle, next)
			}
			if !visited[next] {
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, id)
		visited[id] = true
		return nil
	}

	for _, id := range ids {
		if !visited[id] {
			if c := visit(id); c != nil {
				return c
			}
		}
	}
	return nil
}
