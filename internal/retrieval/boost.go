package retrieval

import (
	"strings"

	"github.com/campus-kb/campusqa/internal/index"
)

// Keyword sets used to pick per-query namespace boosts. Narrative keywords
// suggest regulatory or free-text content; tabular keywords suggest the
// structured course rows.
var (
	narrativeKeywords = []string{
		"regulation", "regulations", "policy", "policies", "rule", "rules",
		"procedure", "deadline", "deadlines", "requirement", "requirements",
		"allowed", "permitted", "retake", "withdraw", "appeal", "explain", "why",
	}
	tabularKeywords = []string{
		"credits", "credit", "ects", "professor", "teaches", "taught",
		"schedule", "semester", "rating", "room", "time", "code",
		"how many", "when is", "who teaches",
	}
)

func countKeywords(lowerQuery string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lowerQuery, kw) {
			n++
		}
	}
	return n
}

// namespaceBoosts returns a boost factor per namespace for this query. The
// side whose keyword set matches more gets the strong boost; ties keep every
// namespace at the default.
func (e *Engine) namespaceBoosts(query string) map[string]float64 {
	lower := strings.ToLower(query)
	narrative := countKeywords(lower, narrativeKeywords)
	tabular := countKeywords(lower, tabularKeywords)

	tabularNS := e.cfg.TabularNamespace
	if tabularNS == "" {
		tabularNS = index.NamespaceCourses
	}

	boosts := make(map[string]float64, len(e.cfg.Namespaces))
	for _, ns := range e.cfg.Namespaces {
		boosts[ns] = e.cfg.DefaultBoost
	}
	switch {
	case narrative > tabular:
		for _, ns := range e.cfg.Namespaces {
			if ns != tabularNS {
				boosts[ns] = e.cfg.StrongBoost
			}
		}
	case tabular > narrative:
		if _, ok := boosts[tabularNS]; ok {
			boosts[tabularNS] = e.cfg.StrongBoost
		}
	}
	return boosts
}

// normalizeScores rescales raw similarity scores into [0,1] with min-max.
// When every score is equal the whole namespace maps to 1.0.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
