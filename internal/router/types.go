package router

// TaskType classifies what kind of work a resolved query asks for.
type TaskType string

const (
	TaskChat      TaskType = "chat"
	TaskReasoning TaskType = "reasoning"
	TaskCoding    TaskType = "coding"
	TaskMath      TaskType = "math"
	TaskSearch    TaskType = "search"
)

// Priority is an explicit caller preference for one scoring dimension.
type Priority string

const (
	PriorityQuality Priority = "quality"
	PrioritySpeed   Priority = "speed"
	PriorityCost    Priority = "cost"
)

// Metadata is the small per-turn routing input. Routing decides which
// model answers, never what context it sees, so history is deliberately
// absent here.
type Metadata struct {
	SearchMode       bool     `json:"search_mode,omitempty"`
	CodingMode       bool     `json:"coding_mode,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
	ProviderOverride string   `json:"provider_override,omitempty"`
}

// Decision names the provider and model that will handle the turn.
type Decision struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reason   string `json:"reason"`
}

// Candidate is one model a task type can route to, scored 0..1 on each
// dimension. Higher is better on every axis, so cost scores are
// inverted (1.0 = cheapest).
type Candidate struct {
	Provider string
	Model    string
	Quality  float64
	Speed    float64
	Cost     float64
}
