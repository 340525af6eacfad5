package graph

import (
	"fmt"
	"slices"
	"sort"
)

// Store is the immutable node and relationship catalog of one course.
// A Store returned by Load is safe for concurrent reads.
type Store struct {
	courseID  string
	nodes     []Node // ordered by metadata.order, then id
	byID      map[string]int
	rels      []Relationship
	incoming  map[string][]int // target id -> relationship indices
	outgoing  map[string][]int // source id -> relationship indices
	roots     []string
	topoOrder []string
}

// Neighbor is a node reached through a relationship, seen from the node it
// was queried for.
type Neighbor struct {
	Node         Node
	Relationship Relationship
	// Outgoing is true when the queried node is the relationship's source.
	Outgoing bool
}

// Strength is a shorthand for the relationship strength.
func (n Neighbor) Strength() int { return n.Relationship.Strength }

// Load validates nodes and relationships and builds an immutable Store.
// It fails with a *ValidationError (possibly several, joined) when any
// relationship endpoint is unknown, a relationship is a self-loop, or the
// prerequisite subgraph contains a cycle.
func Load(courseID string, nodes []Node, rels []Relationship) (*Store, error) {
	if courseID == "" {
		return nil, &ValidationError{Kind: KindInvalidField, IDs: []string{"courseId"}, Detail: "course id must not be empty"}
	}
	if err := validate(nodes, rels); err != nil {
		return nil, err
	}

	s := &Store{
		courseID: courseID,
		nodes:    slices.Clone(nodes),
		byID:     make(map[string]int, len(nodes)),
		rels:     slices.Clone(rels),
		incoming: make(map[string][]int),
		outgoing: make(map[string][]int),
	}
	for i := range s.nodes {
		s.nodes[i] = cloneNode(s.nodes[i])
	}
	sort.SliceStable(s.nodes, func(i, j int) bool {
		if s.nodes[i].Metadata.Order != s.nodes[j].Metadata.Order {
			return s.nodes[i].Metadata.Order < s.nodes[j].Metadata.Order
		}
		return s.nodes[i].ID < s.nodes[j].ID
	})
	for i := range s.nodes {
		s.byID[s.nodes[i].ID] = i
	}
	for i, r := range s.rels {
		s.incoming[r.TargetID] = append(s.incoming[r.TargetID], i)
		s.outgoing[r.SourceID] = append(s.outgoing[r.SourceID], i)
	}
	s.buildTopoOrder()
	return s, nil
}

// buildTopoOrder orders nodes over prerequisite edges (Kahn's algorithm)
// with an id-sorted queue for determinism, and records the roots.
func (s *Store) buildTopoOrder() {
	inDegree := make(map[string]int, len(s.nodes))
	for _, n := range s.nodes {
		inDegree[n.ID] = 0
	}
	for _, r := range s.rels {
		if r.Type == RelationPrerequisite {
			inDegree[r.TargetID]++
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)
	s.roots = slices.Clone(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		s.topoOrder = append(s.topoOrder, id)

		var next []string
		for _, ri := range s.outgoing[id] {
			r := s.rels[ri]
			if r.Type != RelationPrerequisite {
				continue
			}
			inDegree[r.TargetID]--
			if inDegree[r.TargetID] == 0 {
				next = append(next, r.TargetID)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}
}

// CourseID returns the id of the course this store belongs to.
func (s *Store) CourseID() string { return s.courseID }

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// Has reports whether id names a node in the store.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// GetNode returns a node by id, or a *NotFoundError.
func (s *Store) GetNode(id string) (Node, error) {
	i, ok := s.byID[id]
	if !ok {
		return Node{}, &NotFoundError{Kind: "node", ID: id}
	}
	return cloneNode(s.nodes[i]), nil
}

// Nodes returns all nodes ordered by metadata.order, then id.
func (s *Store) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	for i := range s.nodes {
		out[i] = cloneNode(s.nodes[i])
	}
	return out
}

// NodesByModule returns the nodes owned by a module, in Nodes order.
func (s *Store) NodesByModule(moduleID string) []Node {
	var out []Node
	for i := range s.nodes {
		if s.nodes[i].ModuleID == moduleID {
			out = append(out, cloneNode(s.nodes[i]))
		}
	}
	return out
}

// Relationships returns all relationships in load order.
func (s *Store) Relationships() []Relationship {
	return slices.Clone(s.rels)
}

// Roots returns the ids of nodes without prerequisites, sorted.
func (s *Store) Roots() []string {
	return slices.Clone(s.roots)
}

// TopologicalOrder returns node ids ordered so that every node appears after
// all of its prerequisites.
func (s *Store) TopologicalOrder() []string {
	return slices.Clone(s.topoOrder)
}

// GetPrerequisites returns the nodes that are the source of a prerequisite
// relationship targeting nodeID, strongest first, ties by id. Unknown ids
// yield nil.
func (s *Store) GetPrerequisites(nodeID string) []Node {
	return nodesOf(s.prerequisiteLinks(nodeID))
}

// PrerequisiteLinks is GetPrerequisites with the connecting relationships.
func (s *Store) PrerequisiteLinks(nodeID string) []Neighbor {
	return s.prerequisiteLinks(nodeID)
}

func (s *Store) prerequisiteLinks(nodeID string) []Neighbor {
	var out []Neighbor
	for _, ri := range s.incoming[nodeID] {
		r := s.rels[ri]
		if r.Type != RelationPrerequisite {
			continue
		}
		out = append(out, Neighbor{Node: cloneNode(s.nodes[s.byID[r.SourceID]]), Relationship: r})
	}
	sortNeighbors(out)
	return out
}

// GetDependents returns the nodes for which nodeID is a prerequisite,
// strongest first, ties by id.
func (s *Store) GetDependents(nodeID string) []Node {
	var out []Neighbor
	for _, ri := range s.outgoing[nodeID] {
		r := s.rels[ri]
		if r.Type != RelationPrerequisite {
			continue
		}
		out = append(out, Neighbor{Node: cloneNode(s.nodes[s.byID[r.TargetID]]), Relationship: r, Outgoing: true})
	}
	sortNeighbors(out)
	return nodesOf(out)
}

// GetRelated returns every relationship touching nodeID in either direction,
// optionally restricted to the given types, strongest first, ties by id.
func (s *Store) GetRelated(nodeID string, types ...RelationType) []Neighbor {
	keep := func(t RelationType) bool {
		return len(types) == 0 || slices.Contains(types, t)
	}
	var out []Neighbor
	for _, ri := range s.outgoing[nodeID] {
		r := s.rels[ri]
		if keep(r.Type) {
			out = append(out, Neighbor{Node: cloneNode(s.nodes[s.byID[r.TargetID]]), Relationship: r, Outgoing: true})
		}
	}
	for _, ri := range s.incoming[nodeID] {
		r := s.rels[ri]
		if keep(r.Type) {
			out = append(out, Neighbor{Node: cloneNode(s.nodes[s.byID[r.SourceID]]), Relationship: r})
		}
	}
	sortNeighbors(out)
	return out
}

// IsUnlocked reports whether every prerequisite of id is in completed.
// Unknown ids are never unlocked.
func (s *Store) IsUnlocked(id string, completed map[string]bool) bool {
	if !s.Has(id) {
		return false
	}
	for _, ri := range s.incoming[id] {
		r := s.rels[ri]
		if r.Type == RelationPrerequisite && !completed[r.SourceID] {
			return false
		}
	}
	return true
}

// State derives a node's state from the completed set.
func (s *Store) State(id string, completed map[string]bool) (NodeState, error) {
	if !s.Has(id) {
		return StateLocked, &NotFoundError{Kind: "node", ID: id}
	}
	if completed[id] {
		return StateCompleted, nil
	}
	if s.IsUnlocked(id, completed) {
		return StateAvailable, nil
	}
	return StateLocked, nil
}

// AvailableNodes returns all nodes that are unlocked but not completed, in
// topological order.
func (s *Store) AvailableNodes(completed map[string]bool) []Node {
	var out []Node
	for _, id := range s.topoOrder {
		if !completed[id] && s.IsUnlocked(id, completed) {
			out = append(out, cloneNode(s.nodes[s.byID[id]]))
		}
	}
	return out
}

// TotalMinutes sums estimated minutes over the given node ids, skipping
// unknown ids.
func (s *Store) TotalMinutes(ids []string) int {
	total := 0
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			total += s.nodes[i].EstimatedMinutes
		}
	}
	return total
}

func (s *Store) String() string {
	return fmt.Sprintf("graph(%s: %d nodes, %d relationships)", s.courseID, len(s.nodes), len(s.rels))
}

func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Relationship.Strength != ns[j].Relationship.Strength {
			return ns[i].Relationship.Strength > ns[j].Relationship.Strength
		}
		return ns[i].Node.ID < ns[j].Node.ID
	})
}

func nodesOf(ns []Neighbor) []Node {
	if len(ns) == 0 {
		return nil
	}
	out := make([]Node, len(ns))
	for i := range ns {
		out[i] = ns[i].Node
	}
	return out
}

func cloneNode(n Node) Node {
	n.Resources = slices.Clone(n.Resources)
	n.Concepts = slices.Clone(n.Concepts)
	n.Metadata.KeyTakeaways = slices.Clone(n.Metadata.KeyTakeaways)
	return n
}
