package guardrail

import (
	"context"
	"log"
	"strings"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/rerank"
	"github.com/campus-kb/campusqa/internal/retrieval"
)

// Result carries the verification verdict plus every intermediate score, so
// rejected answers stay observable.
type Result struct {
	IsVerified         bool     `json:"is_verified"`
	Confidence         float64  `json:"confidence"`
	FactCheckScore     float64  `json:"fact_check_score"`
	HallucinationRisk  float64  `json:"hallucination_risk"`
	Consistency        float64  `json:"consistency"`
	Completeness       float64  `json:"completeness"`
	Claims             []string `json:"claims,omitempty"`
	UnsupportedClaims  []string `json:"unsupported_claims,omitempty"`
	MissingInformation []string `json:"missing_information,omitempty"`
}

// Verifier checks a generated answer against its retrieval evidence. The
// reranker is optional; without it only lexical overlap supports claims.
type Verifier struct {
	cfg      config.VerificationConfig
	reranker rerank.Reranker
	logger   *log.Logger
}

// NewVerifier builds a verifier with the given acceptance policy.
func NewVerifier(cfg config.VerificationConfig, reranker rerank.Reranker) *Verifier {
	return &Verifier{
		cfg:      cfg,
		reranker: reranker,
		logger:   log.New(log.Writer(), "[GUARD] ", log.LstdFlags),
	}
}

// RefusalMessage is the text substituted for a rejected answer.
func (v *Verifier) RefusalMessage() string { return v.cfg.RefusalMessage }

// Verify scores the answer against the evidence and applies the acceptance
// policy. It never fails; missing evidence degrades the scores instead.
func (v *Verifier) Verify(ctx context.Context, answer string, evidence []retrieval.Candidate, question string) Result {
	claims := extractClaims(answer, v.cfg.MinClaimLength)
	hedged := containsUncertainty(answer)

	supported := 0
	var unsupported []string
	for _, claim := range claims {
		if v.claimSupported(ctx, claim, evidence) {
			supported++
		} else {
			unsupported = append(unsupported, claim)
		}
	}

	var factCheck float64
	if len(claims) > 0 {
		factCheck = float64(supported) / float64(len(claims))
	}

	var risk float64
	switch {
	case hedged:
		risk = 0.1
	case len(claims) > 0:
		risk = float64(len(unsupported)) / float64(len(claims))
	}

	consistency := v.consistency(answer, evidence)
	completeness, missingInfo := v.completeness(question, answer, evidence)

	confidence := 0.4*factCheck + 0.3*consistency + 0.2*completeness + 0.1*(1-risk)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Result{
		IsVerified: confidence > v.cfg.MinConfidence &&
			factCheck > v.cfg.MinFactCheck &&
			risk < v.cfg.MaxHallucinationRisk,
		Confidence:        confidence,
		FactCheckScore:    factCheck,
		HallucinationRisk: risk,
		Consistency:       consistency,
		Completeness:      completeness,
		Claims:             claims,
		UnsupportedClaims:  unsupported,
		MissingInformation: missingInfo,
	}
}

func (v *Verifier) claimSupported(ctx context.Context, claim string, evidence []retrieval.Candidate) bool {
	for _, ev := range evidence {
		if overlapRatio(claim, ev.Chunk.Text) > v.cfg.OverlapThreshold {
			return true
		}
	}
	if v.reranker == nil || len(evidence) == 0 {
		return false
	}
	texts := make([]string, len(evidence))
	for i, ev := range evidence {
		texts[i] = ev.Chunk.Text
	}
	scores, err := v.reranker.Score(ctx, claim, texts)
	if err != nil {
		v.logger.Printf("reranker unavailable for claim check: %v", err)
		return false
	}
	for _, s := range scores {
		if s > v.cfg.RerankThreshold {
			return true
		}
	}
	return false
}

// consistency compares coarse facts in the answer against each evidence text
// via intersection-over-union, averaged across evidence.
func (v *Verifier) consistency(answer string, evidence []retrieval.Candidate) float64 {
	if len(evidence) == 0 {
		return 0
	}
	answerFacts := extractFacts(answer)
	var sum float64
	for _, ev := range evidence {
		sum += setIoU(answerFacts, extractFacts(ev.Chunk.Text))
	}
	return sum / float64(len(evidence))
}

// categoryKeywords map an information category to the words that signal the
// question needs it.
var categoryKeywords = map[string][]string{
	"instructor":    {"who teaches", "professor", "instructor", "lecturer", "taught by"},
	"credits":       {"credits", "credit", "ects"},
	"schedule":      {"when", "schedule", "time", "timetable", "semester"},
	"location":      {"where", "room", "building", "location", "campus"},
	"prerequisites": {"prerequisite", "prerequisites", "before taking", "required course"},
	"evaluation":    {"exam", "grade", "grading", "assessment", "evaluation"},
}

var categoryOrder = []string{"instructor", "credits", "schedule", "location", "prerequisites", "evaluation"}

// completeness penalizes answers that skip categories the question asked for
// and the evidence could have answered, and reports which categories are
// missing.
func (v *Verifier) completeness(question, answer string, evidence []retrieval.Candidate) (float64, []string) {
	lowerQ := strings.ToLower(question)
	lowerA := strings.ToLower(answer)

	var evidenceText strings.Builder
	for _, ev := range evidence {
		evidenceText.WriteString(strings.ToLower(ev.Chunk.Text))
		evidenceText.WriteByte(' ')
	}
	lowerE := evidenceText.String()

	required := 0
	var missing []string
	for _, category := range categoryOrder {
		keywords := categoryKeywords[category]
		if !anyKeyword(lowerQ, keywords) {
			continue
		}
		required++
		if anyKeyword(lowerE, keywords) && !anyKeyword(lowerA, keywords) {
			missing = append(missing, category)
		}
	}
	if required == 0 {
		return 1, nil
	}
	return 1 - float64(len(missing))/float64(required), missing
}

func anyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
