package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/guardrail"
	"github.com/campus-kb/campusqa/internal/llm"
	"github.com/campus-kb/campusqa/internal/retrieval"
	"github.com/campus-kb/campusqa/internal/router"
	"github.com/campus-kb/campusqa/internal/structured"
	"github.com/campus-kb/campusqa/internal/telemetry"
	"github.com/campus-kb/campusqa/internal/understand"
)

// ErrCancelled reports that the caller cancelled the request mid-pipeline.
var ErrCancelled = errors.New("request cancelled")

const generationUnavailableMessage = "The answer service is temporarily unavailable. Please try again in a moment."

// Answer is the stable output contract consumed by the API layer.
type Answer struct {
	RequestID      string            `json:"request_id"`
	ChosenPath     string            `json:"chosen_path"`
	AnswerText     string            `json:"answer_text"`
	Confidence     float64           `json:"confidence"`
	Verified       bool              `json:"verified"`
	MLConfidence   float64           `json:"ml_confidence"`
	FallbackUsed   bool              `json:"fallback_used"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	ProcessingTime float64           `json:"processing_time"`
	Sources        []string          `json:"sources,omitempty"`
	Verification   *guardrail.Result `json:"verification,omitempty"`

	Analysis *understand.QueryAnalysis `json:"analysis,omitempty"`
}

// Deps bundles the pipeline collaborators. Translator, Executor, Summarizer
// and Cancels may be nil; the structured path and cancellation polling then
// degrade gracefully.
type Deps struct {
	Router     *router.Router
	Engine     *retrieval.Engine
	Verifier   *guardrail.Verifier
	Provider   llm.Provider
	Translator structured.Translator
	Executor   *structured.Executor
	Summarizer *structured.Summarizer
	Cancels    CancelRegistry
	Telemetry  *telemetry.Telemetry
}

// Pipeline answers questions end to end: route, structured or retrieval path,
// generation and verification.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *log.Logger
}

// New assembles the pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Process answers one question synchronously.
func (p *Pipeline) Process(ctx context.Context, question, requestID string) (Answer, error) {
	start := time.Now()
	if requestID == "" {
		requestID = uuid.NewString()
	}
	defer p.clearCancel(ctx, requestID)

	if strings.TrimSpace(question) == "" {
		return Answer{
			RequestID:      requestID,
			ChosenPath:     router.PathRetrieval,
			AnswerText:     p.deps.Verifier.RefusalMessage(),
			FallbackReason: "empty question",
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	answer, structuredDone := p.routeAndTryStructured(ctx, question, requestID)
	if structuredDone {
		answer.ProcessingTime = time.Since(start).Seconds()
		p.deps.Telemetry.ObserveRequest(answer.ChosenPath, time.Since(start))
		return answer, nil
	}

	if p.cancelled(ctx, requestID) {
		p.deps.Telemetry.ObserveCancellation()
		return Answer{}, ErrCancelled
	}

	analysis := understand.Analyze(question)
	text, verification, sources, err := p.answerWithRetrieval(ctx, question, requestID, analysis)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			p.deps.Telemetry.ObserveCancellation()
		}
		return Answer{}, err
	}

	answer.Analysis = &analysis
	answer.RequestID = requestID
	answer.ChosenPath = router.PathRetrieval
	answer.AnswerText = text
	answer.Confidence = verification.Confidence
	answer.Verified = verification.IsVerified
	answer.Sources = sources
	answer.Verification = &verification
	answer.ProcessingTime = time.Since(start).Seconds()

	p.deps.Telemetry.ObserveVerification(verification.IsVerified)
	p.deps.Telemetry.ObserveRequest(router.PathRetrieval, time.Since(start))
	return answer, nil
}

// routeAndTryStructured runs routing and, when chosen, the structured path.
// It returns the partially filled answer; done reports whether the structured
// path produced a final answer. Panics anywhere in routing or structured
// execution become an emergency fallback with ml_confidence zero.
func (p *Pipeline) routeAndTryStructured(ctx context.Context, question, requestID string) (answer Answer, done bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("emergency fallback for request %s: %v", requestID, r)
			p.deps.Telemetry.ObserveFallback("emergency")
			answer = Answer{
				MLConfidence:   0,
				FallbackUsed:   true,
				FallbackReason: fmt.Sprintf("emergency fallback: %v", r),
			}
			done = false
		}
	}()

	decision := p.deps.Router.Route(ctx, question)
	answer.MLConfidence = decision.MLConfidence

	if decision.Path != router.PathStructured {
		return answer, false
	}
	if p.cancelled(ctx, requestID) {
		return answer, false
	}

	text, err := p.tryStructured(ctx, question)
	if err != nil {
		p.logger.Printf("structured path failed for request %s: %v", requestID, err)
		p.deps.Telemetry.ObserveFallback("structured_failed")
		answer.FallbackUsed = true
		answer.FallbackReason = fmt.Sprintf("structured path failed: %v", err)
		return answer, false
	}

	answer.RequestID = requestID
	answer.ChosenPath = router.PathStructured
	answer.AnswerText = text
	answer.Confidence = decision.MLConfidence
	answer.Verified = true
	return answer, true
}

// tryStructured attempts translate-execute-summarize up to the configured
// number of attempts. Empty results and unsafe queries count as failed
// attempts and trigger regeneration.
func (p *Pipeline) tryStructured(ctx context.Context, question string) (string, error) {
	if p.deps.Translator == nil || p.deps.Executor == nil || p.deps.Summarizer == nil {
		return "", errors.New("structured path not configured")
	}
	attempts := p.cfg.Router.MaxSQLAttempts
	if attempts <= 0 {
		attempts = 2
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		query, err := p.deps.Translator.Translate(ctx, question, structured.CatalogSchema)
		if err != nil {
			lastErr = err
			continue
		}
		if query == structured.InvalidQueryMarker {
			lastErr = errors.New("translator returned invalid-query marker")
			continue
		}
		rows, err := p.deps.Executor.Execute(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) == 0 {
			lastErr = errors.New("query returned no rows")
			continue
		}
		text, err := p.deps.Summarizer.Summarize(ctx, question, rows)
		if err != nil {
			lastErr = err
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// answerWithRetrieval runs retrieval, generation and verification.
func (p *Pipeline) answerWithRetrieval(ctx context.Context, question, requestID string, analysis understand.QueryAnalysis) (string, guardrail.Result, []string, error) {
	candidates, err := p.retrieve(ctx, question, analysis)
	if err != nil {
		return "", guardrail.Result{}, nil, err
	}
	p.deps.Telemetry.ObserveRetrieved(len(candidates))

	if p.cancelled(ctx, requestID) {
		return "", guardrail.Result{}, nil, ErrCancelled
	}

	prompt := BuildPrompt(question, candidates)
	text, err := p.generate(ctx, prompt, p.cfg.LLM.Routing.Answering)
	if err != nil {
		p.logger.Printf("generation failed for request %s: %v", requestID, err)
		return generationUnavailableMessage, guardrail.Result{}, sourceIDs(candidates), nil
	}

	verification := p.deps.Verifier.Verify(ctx, text, candidates, question)
	if !verification.IsVerified {
		text = p.deps.Verifier.RefusalMessage()
	}
	return text, verification, sourceIDs(candidates), nil
}

// tokenReporter is the optional provider surface that reports token usage.
type tokenReporter interface {
	GenerateWithTokens(ctx context.Context, prompt, model string, options map[string]interface{}) (string, int64, int64, error)
}

// generate calls the provider, tracking spend when the provider reports token
// usage and cost tracking is enabled.
func (p *Pipeline) generate(ctx context.Context, prompt, model string) (string, error) {
	if p.cfg.Telemetry.CostTracking {
		if tr, ok := p.deps.Provider.(tokenReporter); ok {
			text, in, out, err := tr.GenerateWithTokens(ctx, prompt, model, nil)
			if err == nil {
				p.deps.Telemetry.AddCost(p.deps.Provider.CalculateCost(in, out, model))
			}
			return text, err
		}
	}
	return p.deps.Provider.Generate(ctx, prompt, model, nil)
}

// retrieve runs the engine on the question and, when nothing comes back, once
// more per synonym expansion until one variant produces candidates.
func (p *Pipeline) retrieve(ctx context.Context, question string, analysis understand.QueryAnalysis) ([]retrieval.Candidate, error) {
	candidates, err := p.deps.Engine.Retrieve(ctx, question)
	if err != nil || len(candidates) > 0 {
		return candidates, err
	}
	for _, variant := range analysis.Expansions {
		candidates, err = p.deps.Engine.Retrieve(ctx, variant)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			p.logger.Printf("expansion %q recovered %d candidates", variant, len(candidates))
			return candidates, nil
		}
	}
	return candidates, nil
}

const answerPromptHeader = `You are the assistant for a university knowledge base. Answer the question using only the context below. If the context does not contain the answer, say that you don't know.`

// BuildPrompt renders the retrieval candidates into the generation prompt.
func BuildPrompt(question string, candidates []retrieval.Candidate) string {
	var b strings.Builder
	b.WriteString(answerPromptHeader)
	b.WriteString("\n\nContext:\n")
	if len(candidates) == 0 {
		b.WriteString("(no relevant documents found)\n")
	}
	for _, c := range candidates {
		fmt.Fprintf(&b, "[%s] %s\n", c.Chunk.Namespace, c.Chunk.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

func sourceIDs(candidates []retrieval.Candidate) []string {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Chunk.Namespace + "/" + c.Chunk.ID
	}
	return out
}

func (p *Pipeline) cancelled(ctx context.Context, requestID string) bool {
	if p.deps.Cancels == nil || requestID == "" {
		return false
	}
	return p.deps.Cancels.IsCancelled(ctx, requestID)
}

func (p *Pipeline) clearCancel(ctx context.Context, requestID string) {
	if p.deps.Cancels != nil && requestID != "" {
		p.deps.Cancels.Clear(ctx, requestID)
	}
}

// Cancel flags a request for cooperative cancellation.
func (p *Pipeline) Cancel(ctx context.Context, requestID string) error {
	if p.deps.Cancels == nil {
		return errors.New("cancellation not configured")
	}
	return p.deps.Cancels.RequestCancel(ctx, requestID)
}
