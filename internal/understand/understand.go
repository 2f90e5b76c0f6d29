package understand

import (
	"regexp"
	"sort"
	"strings"
)

// Intent labels for a question.
const (
	IntentFactual        = "factual"
	IntentProcedural     = "procedural"
	IntentComparative    = "comparative"
	IntentExplanatory    = "explanatory"
	IntentConversational = "conversational"
	IntentClarification  = "clarification"
)

// Complexity buckets.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
	ComplexityExpert   = "expert"
)

// Entity is a recognized domain entity in the question.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// QueryAnalysis is the full understanding of one question. Confidence grows
// with every matched intent pattern and entity, capped at 1.
type QueryAnalysis struct {
	Intent            string   `json:"intent"`
	Entities          []Entity `json:"entities"`
	Complexity        string   `json:"complexity"`
	ComplexityScore   int      `json:"complexity_score"`
	RequiresReasoning bool     `json:"requires_reasoning"`
	Confidence        float64  `json:"confidence"`
	Expansions        []string `json:"expansions"`
}

type intentDef struct {
	name     string
	patterns []*regexp.Regexp
	base     int
}

// Declaration order breaks ties, so the more specific intents come first.
var intents = []intentDef{
	{IntentComparative, compile(
		`\b(compare|comparison|versus|vs\.?)\b`,
		`\b(difference|differences) between\b`,
		`\bwhich (one|course|is) (is )?(better|easier|harder)\b`,
		`\b(more|less|fewer) .* than\b`,
	), 3},
	{IntentExplanatory, compile(
		`\bwhy\b`,
		`\bexplain\b`,
		`\bwhat (is|are) the reason`,
		`\bhow (does|do) .* work\b`,
	), 3},
	{IntentProcedural, compile(
		`\bhow (do|can|should) i\b`,
		`\bhow to\b`,
		`\b(steps?|procedure|process) (to|for)\b`,
		`\b(enroll|register|apply|submit|withdraw)\b`,
	), 2},
	{IntentClarification, compile(
		`\bwhat (do you|does that) mean\b`,
		`\bcould you (clarify|repeat|rephrase)\b`,
		`\bi (don'?t|do not) understand\b`,
	), 2},
	{IntentConversational, compile(
		`^(hi|hello|hey|thanks|thank you|good (morning|afternoon|evening))\b`,
		`\bhow are you\b`,
	), 1},
	{IntentFactual, compile(
		`\b(who|what|when|where|which)\b`,
		`\bhow (many|much)\b`,
		`\b(is|are|does|do)\b.*\?`,
	), 1},
}

type entityDef struct {
	typ     string
	pattern *regexp.Regexp
}

var entityDefs = []entityDef{
	{"course", regexp.MustCompile(`\b[A-Z]{2,4}\s?\d{2,3}\b`)},
	{"course", regexp.MustCompile(`(?i)\b(operating systems|computer science|linear algebra|calculus|databases?|algorithms|machine learning|software engineering)\b`)},
	{"professor", regexp.MustCompile(`(?i)\b(?:professor|prof\.?|dr\.?)\s+([A-Z][a-z]+)`)},
	{"department", regexp.MustCompile(`(?i)\b(engineering|mathematics|physics|law|medicine|economics|humanities) (department|faculty)\b`)},
	{"department", regexp.MustCompile(`(?i)\bdepartment of ([a-z ]+)`)},
	{"credits", regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:ects\s*)?credits?\b`)},
	{"semester", regexp.MustCompile(`(?i)\b(fall|spring|summer|winter)\s*(semester|\d{4})?\b`)},
	{"semester", regexp.MustCompile(`(?i)\b(first|second) semester\b`)},
}

var questionWords = []string{"who", "what", "when", "where", "why", "how", "which"}

// synonyms maps campus shorthand onto the vocabulary the corpus uses.
var synonyms = map[string]string{
	"prof":      "professor",
	"profs":     "professors",
	"dept":      "department",
	"ects":      "credits",
	"class":     "course",
	"classes":   "courses",
	"teacher":   "professor",
	"lecturer":  "professor",
	"sign up":   "enroll",
	"uni":       "university",
	"timetable": "schedule",
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Analyze inspects a question and returns its intent, entities, complexity and
// expansion variants. It never fails; an unrecognizable question comes back as
// factual/simple with no entities.
func Analyze(question string) QueryAnalysis {
	lower := strings.ToLower(strings.TrimSpace(question))

	intent, base, matches := classifyIntent(lower)
	entities := extractEntities(question)
	score := complexityScore(lower, base, len(entities))
	bucket := bucketFor(score)

	confidence := 0.3 + 0.15*float64(matches) + 0.1*float64(len(entities))
	if confidence > 1 {
		confidence = 1
	}

	return QueryAnalysis{
		Intent:          intent,
		Entities:        entities,
		Complexity:      bucket,
		ComplexityScore: score,
		RequiresReasoning: bucket == ComplexityComplex || bucket == ComplexityExpert ||
			intent == IntentComparative || intent == IntentExplanatory ||
			len(entities) > 2,
		Confidence: confidence,
		Expansions: expand(lower),
	}
}

func classifyIntent(lower string) (string, int, int) {
	bestName := IntentFactual
	bestBase := 1
	bestCount := 0
	for _, def := range intents {
		count := 0
		for _, p := range def.patterns {
			if p.MatchString(lower) {
				count++
			}
		}
		if count > bestCount {
			bestName = def.name
			bestBase = def.base
			bestCount = count
		}
	}
	return bestName, bestBase, bestCount
}

func extractEntities(question string) []Entity {
	seen := make(map[string]bool)
	var out []Entity
	for _, def := range entityDefs {
		for _, m := range def.pattern.FindAllString(question, -1) {
			value := strings.TrimSpace(m)
			key := def.typ + "\x00" + strings.ToLower(value)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Entity{Type: def.typ, Value: value})
		}
	}
	return out
}

func complexityScore(lower string, base, entityCount int) int {
	score := base
	if entityCount > 3 {
		entityCount = 3
	}
	score += entityCount
	if len(strings.Fields(lower)) > 10 {
		score++
	}
	distinct := 0
	for _, qw := range questionWords {
		if regexp.MustCompile(`\b` + qw + `\b`).MatchString(lower) {
			distinct++
		}
	}
	if distinct > 1 {
		score++
	}
	return score
}

func bucketFor(score int) string {
	switch {
	case score <= 2:
		return ComplexitySimple
	case score <= 4:
		return ComplexityModerate
	case score <= 6:
		return ComplexityComplex
	default:
		return ComplexityExpert
	}
}

func expand(lower string) []string {
	var out []string
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		if !re.MatchString(lower) {
			continue
		}
		variant := re.ReplaceAllString(lower, synonyms[k])
		if variant != lower {
			out = append(out, variant)
		}
	}
	return out
}
