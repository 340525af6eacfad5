package graph

// Difficulty is the ordered difficulty level of a node or path.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// AllDifficulties returns all difficulty levels in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{
		DifficultyBeginner,
		DifficultyIntermediate,
		DifficultyAdvanced,
	}
}

// Rank returns the position of d in the beginner < intermediate < advanced
// ordering, or -1 for an unknown value.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBeginner:
		return 0
	case DifficultyIntermediate:
		return 1
	case DifficultyAdvanced:
		return 2
	default:
		return -1
	}
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool { return d.Rank() >= 0 }

// Importance classifies how essential a node is to the course.
type Importance string

const (
	ImportanceCore        Importance = "core"
	ImportanceRecommended Importance = "recommended"
	ImportanceOptional    Importance = "optional"
)

// Rank orders importance for recommendation: lower ranks come first.
// Unknown values rank last.
func (i Importance) Rank() int {
	switch i {
	case ImportanceCore:
		return 0
	case ImportanceRecommended:
		return 1
	case ImportanceOptional:
		return 2
	default:
		return 3
	}
}

// Valid reports whether i is a known importance.
func (i Importance) Valid() bool { return i.Rank() < 3 }

// RelationType is the kind of a relationship between two nodes.
type RelationType string

const (
	RelationPrerequisite RelationType = "prerequisite"
	RelationAppliesTo    RelationType = "applies-to"
	RelationRelatesTo    RelationType = "relates-to"
)

// Valid reports whether t is a known relationship type.
func (t RelationType) Valid() bool {
	switch t {
	case RelationPrerequisite, RelationAppliesTo, RelationRelatesTo:
		return true
	default:
		return false
	}
}

// Strength bounds for relationships.
const (
	MinStrength = 1
	MaxStrength = 10
)

// NodeMetadata carries display hints for a node.
type NodeMetadata struct {
	Order        int      `json:"order" yaml:"order"`
	KeyTakeaways []string `json:"keyTakeaways,omitempty" yaml:"keyTakeaways,omitempty"`
}

// Node is a single learning concept within a course.
type Node struct {
	ID               string       `json:"id" yaml:"id"`
	ModuleID         string       `json:"moduleId" yaml:"moduleId"`
	Title            string       `json:"title" yaml:"title"`
	Description      string       `json:"description,omitempty" yaml:"description,omitempty"`
	Difficulty       Difficulty   `json:"difficulty" yaml:"difficulty"`
	Importance       Importance   `json:"importance" yaml:"importance"`
	EstimatedMinutes int          `json:"estimatedMinutes" yaml:"estimatedMinutes"`
	Resources        []string     `json:"resources,omitempty" yaml:"resources,omitempty"`
	Concepts         []string     `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	Metadata         NodeMetadata `json:"metadata" yaml:"metadata"`
}

// Relationship is a directed, typed, weighted edge between two nodes.
// For prerequisite edges the source must be learned before the target.
type Relationship struct {
	ID          string       `json:"id" yaml:"id"`
	SourceID    string       `json:"sourceId" yaml:"sourceId"`
	TargetID    string       `json:"targetId" yaml:"targetId"`
	Type        RelationType `json:"type" yaml:"type"`
	Strength    int          `json:"strength" yaml:"strength"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// NodeState is a node's state relative to a learner. It is derived from the
// completed set, never stored.
type NodeState int

const (
	StateLocked    NodeState = iota // One or more prerequisites not completed
	StateAvailable                  // All prerequisites completed
	StateCompleted                  // Marked completed
)

// Label returns the display label for a node state.
func (s NodeState) Label() string {
	switch s {
	case StateLocked:
		return "Locked"
	case StateAvailable:
		return "Available"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Icon returns the display icon for a node state.
func (s NodeState) Icon() string {
	switch s {
	case StateLocked:
		return "🔒"
	case StateAvailable:
		return "🔓"
	case StateCompleted:
		return "✅"
	default:
		return "?"
	}
}
