package router

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
)

// Default scoring weights. Quality carries half the weight because a
// wrong answer costs more than a slow or expensive one; an explicit
// priority hint doubles its own dimension before scoring.
const (
	weightQuality = 0.5
	weightSpeed   = 0.25
	weightCost    = 0.25
)

// candidates maps each task type to the models that can serve it.
// Ordering within a slice is irrelevant; selection is by score with a
// lexicographic provider/model tie-break.
var candidates = map[TaskType][]Candidate{
	TaskChat: {
		{Provider: "anthropic", Model: "claude-3-5-haiku-latest", Quality: 0.75, Speed: 0.9, Cost: 0.8},
		{Provider: "openai", Model: "gpt-4o-mini", Quality: 0.7, Speed: 0.9, Cost: 0.9},
		{Provider: "google", Model: "gemini-2.0-flash", Quality: 0.7, Speed: 0.95, Cost: 0.9},
	},
	TaskReasoning: {
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", Quality: 0.95, Speed: 0.6, Cost: 0.4},
		{Provider: "openai", Model: "o4-mini", Quality: 0.9, Speed: 0.5, Cost: 0.5},
		{Provider: "google", Model: "gemini-2.5-pro", Quality: 0.9, Speed: 0.55, Cost: 0.45},
	},
	TaskCoding: {
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", Quality: 0.95, Speed: 0.6, Cost: 0.4},
		{Provider: "openai", Model: "gpt-4o", Quality: 0.85, Speed: 0.7, Cost: 0.5},
		{Provider: "openrouter", Model: "deepseek/deepseek-chat-v3-0324", Quality: 0.8, Speed: 0.65, Cost: 0.85},
	},
	TaskMath: {
		{Provider: "openai", Model: "o4-mini", Quality: 0.95, Speed: 0.5, Cost: 0.5},
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", Quality: 0.9, Speed: 0.6, Cost: 0.4},
	},
	TaskSearch: {
		{Provider: "google", Model: "gemini-2.0-flash", Quality: 0.8, Speed: 0.95, Cost: 0.9},
		{Provider: "openrouter", Model: "perplexity/sonar", Quality: 0.85, Speed: 0.7, Cost: 0.6},
	},
}

// defaultModels backs a provider override when that provider has no
// candidate for the classified task.
var defaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-20250514",
	"openai":     "gpt-4o",
	"google":     "gemini-2.0-flash",
	"openrouter": "deepseek/deepseek-chat-v3-0324",
	"ollama":     "llama3.1",
}

var (
	codingRe = regexp.MustCompile(`(?i)\b(code|coding|function|bug|debug|compile|implement|refactor|golang|python|javascript|typescript|rust|sql|regex|stack trace|unit test)\b`)
	mathRe   = regexp.MustCompile(`(?i)\b(calculate|solve|equation|integral|derivative|probability|theorem|arithmetic)\b|\d+\s*[-+*/^]\s*\d+`)
	reasonRe = regexp.MustCompile(`(?i)\b(why|explain|compare|analy[sz]e|prove|reason|pros and cons|trade-?offs?|step by step)\b`)
	searchRe = regexp.MustCompile(`(?i)\b(latest|news|today|current|recent|right now|this week|search for)\b`)
)

// Classify assigns a task type to a resolved query. Explicit mode flags
// win over keyword detection; coding beats math beats search beats
// reasoning when several patterns match.
func Classify(query string, meta Metadata) TaskType {
	switch {
	case meta.CodingMode:
		return TaskCoding
	case meta.SearchMode:
		return TaskSearch
	case strings.Contains(query, "```") || codingRe.MatchString(query):
		return TaskCoding
	case mathRe.MatchString(query):
		return TaskMath
	case searchRe.MatchString(query):
		return TaskSearch
	case reasonRe.MatchString(query):
		return TaskReasoning
	default:
		return TaskChat
	}
}

// Router selects a provider/model for each turn. With a nil rng or zero
// epsilon it is a pure function of its inputs.
type Router struct {
	epsilon float64
	rng     *rand.Rand
}

// New creates a router. epsilon is the exploration probability; pass a
// nil rng (or epsilon 0) for fully deterministic routing.
func New(epsilon float64, rng *rand.Rand) *Router {
	return &Router{epsilon: epsilon, rng: rng}
}

// Route picks the model for a resolved query. A provider override in
// the metadata bypasses classification entirely.
func (r *Router) Route(query string, meta Metadata) Decision {
	if meta.ProviderOverride != "" {
		return Decision{
			Provider: meta.ProviderOverride,
			Model:    overrideModel(meta.ProviderOverride, Classify(query, meta)),
			Reason:   "override",
		}
	}

	task := Classify(query, meta)
	pool := candidates[task]

	if r.rng != nil && r.epsilon > 0 && r.rng.Float64() < r.epsilon && len(pool) > 1 {
		c := pool[r.rng.Intn(len(pool))]
		return Decision{
			Provider: c.Provider,
			Model:    c.Model,
			Reason:   fmt.Sprintf("explore:%s", task),
		}
	}

	best := pickBest(pool, meta.Priority)
	return Decision{
		Provider: best.Provider,
		Model:    best.Model,
		Reason:   fmt.Sprintf("task:%s priority:%s", task, priorityOrDefault(meta.Priority)),
	}
}

// Candidates returns a copy of the pool for a task type, for display
// and wizard presets.
func Candidates(task TaskType) []Candidate {
	pool := candidates[task]
	out := make([]Candidate, len(pool))
	copy(out, pool)
	return out
}

// overrideModel resolves the model for an overridden provider: the
// provider's candidate for the classified task when it has one,
// otherwise its general default.
func overrideModel(provider string, task TaskType) string {
	for _, c := range candidates[task] {
		if c.Provider == provider {
			return c.Model
		}
	}
	return defaultModels[provider]
}

func priorityOrDefault(p Priority) Priority {
	if p == "" {
		return PriorityQuality
	}
	return p
}

// pickBest scores every candidate with the weighted sum and returns the
// highest scorer. Ties break lexicographically on provider then model
// so identical inputs always yield identical decisions.
func pickBest(pool []Candidate, priority Priority) Candidate {
	wq, ws, wc := weightQuality, weightSpeed, weightCost
	switch priority {
	case PriorityQuality:
		wq *= 2
	case PrioritySpeed:
		ws *= 2
	case PriorityCost:
		wc *= 2
	}

	scored := make([]Candidate, len(pool))
	copy(scored, pool)
	sort.Slice(scored, func(i, j int) bool {
		si := score(scored[i], wq, ws, wc)
		sj := score(scored[j], wq, ws, wc)
		if si != sj {
			return si > sj
		}
		if scored[i].Provider != scored[j].Provider {
			return scored[i].Provider < scored[j].Provider
		}
		return scored[i].Model < scored[j].Model
	})
	return scored[0]
}

func score(c Candidate, wq, ws, wc float64) float64 {
	return c.Quality*wq + c.Speed*ws + c.Cost*wc
}
