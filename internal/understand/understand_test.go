package understand

import (
	"testing"
)

func TestAnalyzeFactualSimple(t *testing.T) {
	a := Analyze("Who teaches Operating Systems?")
	if a.Intent != IntentFactual {
		t.Fatalf("expected factual intent, got %s", a.Intent)
	}
	if a.Complexity != ComplexitySimple {
		t.Fatalf("expected simple complexity, got %s (score %d)", a.Complexity, a.ComplexityScore)
	}
	if len(a.Entities) != 1 || a.Entities[0].Type != "course" {
		t.Fatalf("expected one course entity, got %+v", a.Entities)
	}
	if a.RequiresReasoning {
		t.Fatal("simple factual question should not require reasoning")
	}
}

func TestAnalyzeProcedural(t *testing.T) {
	a := Analyze("How do I enroll in the fall semester?")
	if a.Intent != IntentProcedural {
		t.Fatalf("expected procedural intent, got %s", a.Intent)
	}
	found := false
	for _, e := range a.Entities {
		if e.Type == "semester" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a semester entity, got %+v", a.Entities)
	}
}

func TestAnalyzeComparativeRequiresReasoning(t *testing.T) {
	a := Analyze("Compare CS101 versus MATH201")
	if a.Intent != IntentComparative {
		t.Fatalf("expected comparative intent, got %s", a.Intent)
	}
	if !a.RequiresReasoning {
		t.Fatal("comparative questions require reasoning")
	}
}

func TestAnalyzeCourseCodeEntity(t *testing.T) {
	a := Analyze("How many credits is CS101 worth?")
	var haveCourse bool
	for _, e := range a.Entities {
		if e.Type == "course" {
			haveCourse = true
		}
	}
	if !haveCourse {
		t.Fatalf("expected course entity for CS101, got %+v", a.Entities)
	}
}

func TestAnalyzeEntityDeduplication(t *testing.T) {
	a := Analyze("Is CS101 harder than CS101?")
	courses := 0
	for _, e := range a.Entities {
		if e.Type == "course" {
			courses++
		}
	}
	if courses != 1 {
		t.Fatalf("expected duplicate course collapsed to 1, got %d", courses)
	}
}

func TestAnalyzeExpansion(t *testing.T) {
	a := Analyze("who is the prof for CS101")
	if len(a.Expansions) == 0 {
		t.Fatal("expected at least one expansion variant")
	}
	found := false
	for _, v := range a.Expansions {
		if v == "who is the professor for cs101" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected professor substitution, got %v", a.Expansions)
	}
}

func TestAnalyzeNeverFailsOnNoise(t *testing.T) {
	for _, q := range []string{"", "   ", "????", "asdf qwerty"} {
		a := Analyze(q)
		if a.Intent != IntentFactual {
			t.Fatalf("q=%q: expected default factual intent, got %s", q, a.Intent)
		}
		if a.Complexity != ComplexitySimple {
			t.Fatalf("q=%q: expected simple complexity, got %s", q, a.Complexity)
		}
		if len(a.Entities) != 0 {
			t.Fatalf("q=%q: expected no entities, got %+v", q, a.Entities)
		}
	}
}

func TestComplexityBasePerIntent(t *testing.T) {
	// Bare questions with no entities, so the score is the intent base alone.
	cases := []struct {
		question string
		intent   string
		score    int
	}{
		{"what?", IntentFactual, 1},
		{"hello", IntentConversational, 1},
		{"how to enroll", IntentProcedural, 2},
		{"could you clarify", IntentClarification, 2},
		{"compare these", IntentComparative, 3},
		{"explain", IntentExplanatory, 3},
	}
	for _, c := range cases {
		a := Analyze(c.question)
		if a.Intent != c.intent {
			t.Fatalf("q=%q: expected intent %s, got %s", c.question, c.intent, a.Intent)
		}
		if a.ComplexityScore != c.score {
			t.Fatalf("q=%q: expected score %d, got %d", c.question, c.score, a.ComplexityScore)
		}
	}
}

func TestAnalyzeClarificationComplexity(t *testing.T) {
	a := Analyze("Could you clarify what the prerequisite rules for CS101 mean in the fall semester?")
	if a.Intent != IntentClarification {
		t.Fatalf("expected clarification intent, got %s", a.Intent)
	}
	if a.ComplexityScore != 5 {
		t.Fatalf("expected score 5 (base 2 + 2 entities + long question), got %d", a.ComplexityScore)
	}
	if a.Complexity != ComplexityComplex {
		t.Fatalf("expected complex bucket, got %s", a.Complexity)
	}
	if !a.RequiresReasoning {
		t.Fatal("complex clarification questions require reasoning")
	}
}

func TestAnalyzeConfidenceGrowsWithSignals(t *testing.T) {
	vague := Analyze("asdf qwerty")
	rich := Analyze("Who teaches CS101 in the fall semester?")
	if rich.Confidence <= vague.Confidence {
		t.Fatalf("expected richer question to score higher, got %f vs %f", rich.Confidence, vague.Confidence)
	}
	for _, a := range []QueryAnalysis{vague, rich} {
		if a.Confidence < 0 || a.Confidence > 1 {
			t.Fatalf("confidence out of range: %f", a.Confidence)
		}
	}
}

func TestComplexityBuckets(t *testing.T) {
	cases := []struct {
		score  int
		bucket string
	}{
		{1, ComplexitySimple},
		{2, ComplexitySimple},
		{3, ComplexityModerate},
		{4, ComplexityModerate},
		{5, ComplexityComplex},
		{6, ComplexityComplex},
		{7, ComplexityExpert},
	}
	for _, c := range cases {
		if got := bucketFor(c.score); got != c.bucket {
			t.Fatalf("score %d: expected %s, got %s", c.score, c.bucket, got)
		}
	}
}
