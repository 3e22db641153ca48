package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/ziadkadry99/threadflow/internal/thread"
)

// ResolvedQuery is a user message after pronoun/entity disambiguation.
// It is derived state, recomputed per turn, and never persisted as
// authoritative.
type ResolvedQuery struct {
	Query    string   `json:"query"`
	Entities []string `json:"entities"`
}

// Resolver rewrites a raw user message into a resolved query using recent
// history. Implementations never mutate the thread store.
type Resolver interface {
	Resolve(ctx context.Context, latest string, recent []thread.Turn) (ResolvedQuery, error)
}

// possessivePronouns are replaced by "<entity>'s"; plainPronouns by the
// entity itself.
var (
	possessivePronouns = map[string]bool{
		"his": true, "her": true, "hers": true, "its": true, "their": true, "theirs": true,
	}
	plainPronouns = map[string]bool{
		"he": true, "him": true, "she": true, "it": true, "they": true, "them": true,
		"that": true, "this": true,
	}

	pronounRe = regexp.MustCompile(`(?i)\b(his|hers|her|its|theirs|their|he|him|she|it|they|them|that|this)\b`)

	// properNounRe matches capitalized word runs ("Donald Trump", "Berlin").
	properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
)

// stopwords are capitalized words that are not entities (question openers,
// sentence starters).
var stopwords = map[string]bool{
	"Who": true, "What": true, "When": true, "Where": true, "Why": true, "How": true,
	"Is": true, "Are": true, "Was": true, "Were": true, "Do": true, "Does": true, "Did": true,
	"Can": true, "Could": true, "Will": true, "Would": true, "Should": true,
	"The": true, "A": true, "An": true, "I": true, "My": true, "Me": true,
	"Tell": true, "Please": true, "And": true, "But": true, "Or": true, "If": true,
	"Yes": true, "No": true, "Ok": true, "Okay": true, "Thanks": true, "Thank": true,
}

// HeuristicResolver resolves pronouns against the most recent entities
// introduced in history. It is deterministic for identical inputs.
type HeuristicResolver struct{}

// NewHeuristicResolver creates a rule-based resolver.
func NewHeuristicResolver() *HeuristicResolver {
	return &HeuristicResolver{}
}

func (r *HeuristicResolver) Resolve(_ context.Context, latest string, recent []thread.Turn) (ResolvedQuery, error) {
	loc := pronounRe.FindStringIndex(latest)
	if loc == nil {
		return ResolvedQuery{Query: latest, Entities: []string{}}, nil
	}

	entities := ExtractEntities(recent)
	if len(entities) == 0 {
		// Nothing to resolve against; pass through unresolved.
		return ResolvedQuery{Query: latest, Entities: []string{}}, nil
	}

	pronoun := strings.ToLower(latest[loc[0]:loc[1]])
	entity := entities[0]

	replacement := entity
	if possessivePronouns[pronoun] {
		replacement = entity + "'s"
	}

	resolved := latest[:loc[0]] + replacement + latest[loc[1]:]
	return ResolvedQuery{Query: resolved, Entities: entities}, nil
}

// ExtractEntities pulls proper-noun entities out of the given turns,
// most recently mentioned first, deduplicated.
func ExtractEntities(turns []thread.Turn) []string {
	var entities []string
	seen := make(map[string]bool)

	for i := len(turns) - 1; i >= 0; i-- {
		for _, match := range properNounRe.FindAllString(turns[i].Content, -1) {
			match = trimStopwords(match)
			if match == "" || seen[match] {
				continue
			}
			seen[match] = true
			entities = append(entities, match)
		}
	}
	return entities
}

// trimStopwords strips leading stopwords from a capitalized run, so
// "Who is Donald Trump" yields "Donald Trump" rather than "Who".
func trimStopwords(match string) string {
	words := strings.Fields(match)
	for len(words) > 0 && stopwords[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
