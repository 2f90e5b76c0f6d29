package router

import (
	"regexp"
	"strings"

	"github.com/campus-kb/campusqa/internal/understand"
)

var (
	courseCodePattern = regexp.MustCompile(`\b[A-Z]{2,4}\s?\d{2,3}\b`)
	aggregatePattern  = regexp.MustCompile(`(?i)\b(how many|count|number of|average|total|list all|all courses)\b`)
	comparePattern    = regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|difference between|better|easier|harder)\b`)
	whyPattern        = regexp.MustCompile(`(?i)\b(why|explain|reason)\b`)
)

// Features builds the classifier input for a question: a fixed block of
// lexical features followed by the semantic embedding. The lexical block
// length is stable so trained weights stay aligned.
func Features(question string, embedding []float32) []float64 {
	analysis := understand.Analyze(question)
	words := strings.Fields(question)

	lexical := []float64{
		float64(len(words)) / 20.0,
		float64(strings.Count(question, "?")),
		boolFeature(courseCodePattern.MatchString(question)),
		boolFeature(aggregatePattern.MatchString(question)),
		boolFeature(comparePattern.MatchString(question)),
		boolFeature(whyPattern.MatchString(question)),
		float64(analysis.ComplexityScore) / 10.0,
		float64(len(analysis.Entities)) / 5.0,
		boolFeature(analysis.RequiresReasoning),
	}

	out := make([]float64, 0, len(lexical)+len(embedding))
	out = append(out, lexical...)
	for _, v := range embedding {
		out = append(out, float64(v))
	}
	return out
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
