package guardrail

import (
	"regexp"
	"strings"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+|[.!?]+$`)

// uncertaintyPhrases are answer fragments that signal the model is declining
// rather than asserting.
var uncertaintyPhrases = []string{
	"i don't know",
	"i do not know",
	"i'm not sure",
	"i am not sure",
	"i cannot answer",
	"can't answer",
	"no information",
	"not enough information",
	"unable to find",
	"unsure",
}

func containsUncertainty(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range uncertaintyPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// extractClaims splits an answer into checkable claims: sentences long enough
// to carry a fact and not pure hedging.
func extractClaims(answer string, minLength int) []string {
	var claims []string
	for _, s := range sentenceSplit.Split(answer, -1) {
		s = strings.TrimSpace(s)
		if len(s) < minLength {
			continue
		}
		if containsUncertainty(s) {
			continue
		}
		claims = append(claims, s)
	}
	return claims
}

var (
	numberPattern     = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	properNamePattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
)

// domainKeywords are course-catalog terms treated as facts for the
// consistency comparison.
var domainKeywords = []string{
	"credits", "ects", "semester", "professor", "exam", "prerequisite",
	"lecture", "schedule", "mandatory", "elective",
}

// extractFacts pulls coarse factual tokens out of a text: numbers, proper
// names and catalog keywords, lowercased into a set.
func extractFacts(text string) map[string]bool {
	facts := make(map[string]bool)
	for _, n := range numberPattern.FindAllString(text, -1) {
		facts[n] = true
	}
	for _, name := range properNamePattern.FindAllString(text, -1) {
		facts[strings.ToLower(name)] = true
	}
	lower := strings.ToLower(text)
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			facts[kw] = true
		}
	}
	return facts
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		set[w] = true
	}
	return set
}

// overlapRatio is the share of claim words that also appear in the evidence.
func overlapRatio(claim, evidence string) float64 {
	claimWords := wordSet(claim)
	if len(claimWords) == 0 {
		return 0
	}
	evidenceWords := wordSet(evidence)
	hits := 0
	for w := range claimWords {
		if evidenceWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(claimWords))
}

// setIoU is intersection-over-union of two fact sets.
func setIoU(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
