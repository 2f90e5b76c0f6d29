package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-kb/campusqa/internal/router"
	"github.com/campus-kb/campusqa/internal/understand"
)

// Stream event types.
const (
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is one increment of a streamed answer. Token events carry text;
// the final done event carries the full Answer including verification.
type StreamEvent struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Answer *Answer `json:"answer,omitempty"`
}

// ProcessStream answers a question as a stream of token events followed by a
// done event. Cancellation is checked between pipeline stages and between
// tokens; once observed the stream ends without a done event.
func (p *Pipeline) ProcessStream(ctx context.Context, question, requestID string) (<-chan StreamEvent, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer p.clearCancel(ctx, requestID)
		p.runStream(ctx, question, requestID, events)
	}()
	return events, nil
}

func (p *Pipeline) runStream(ctx context.Context, question, requestID string, events chan<- StreamEvent) {
	start := time.Now()

	if strings.TrimSpace(question) == "" {
		answer := Answer{
			RequestID:      requestID,
			ChosenPath:     router.PathRetrieval,
			AnswerText:     p.deps.Verifier.RefusalMessage(),
			FallbackReason: "empty question",
			ProcessingTime: time.Since(start).Seconds(),
		}
		p.emit(ctx, events, StreamEvent{Type: EventToken, Text: answer.AnswerText})
		p.emit(ctx, events, StreamEvent{Type: EventDone, Answer: &answer})
		return
	}

	answer, structuredDone := p.routeAndTryStructured(ctx, question, requestID)
	if structuredDone {
		answer.ProcessingTime = time.Since(start).Seconds()
		p.deps.Telemetry.ObserveRequest(answer.ChosenPath, time.Since(start))
		p.emit(ctx, events, StreamEvent{Type: EventToken, Text: answer.AnswerText})
		p.emit(ctx, events, StreamEvent{Type: EventDone, Answer: &answer})
		return
	}

	if p.cancelled(ctx, requestID) {
		p.deps.Telemetry.ObserveCancellation()
		return
	}

	analysis := understand.Analyze(question)
	answer.Analysis = &analysis

	candidates, err := p.retrieve(ctx, question, analysis)
	if err != nil {
		p.emit(ctx, events, StreamEvent{Type: EventError, Text: err.Error()})
		return
	}
	p.deps.Telemetry.ObserveRetrieved(len(candidates))

	if p.cancelled(ctx, requestID) {
		p.deps.Telemetry.ObserveCancellation()
		return
	}

	prompt := BuildPrompt(question, candidates)
	chunks, err := p.deps.Provider.GenerateStream(ctx, prompt, p.cfg.LLM.Routing.Answering, nil)
	if err != nil {
		p.logger.Printf("stream generation failed for request %s: %v", requestID, err)
		p.emit(ctx, events, StreamEvent{Type: EventToken, Text: generationUnavailableMessage})
		answer.RequestID = requestID
		answer.ChosenPath = router.PathRetrieval
		answer.AnswerText = generationUnavailableMessage
		answer.Sources = sourceIDs(candidates)
		answer.ProcessingTime = time.Since(start).Seconds()
		p.emit(ctx, events, StreamEvent{Type: EventDone, Answer: &answer})
		return
	}

	var full strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			p.emit(ctx, events, StreamEvent{Type: EventError, Text: chunk.Err.Error()})
			return
		}
		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			if !p.emit(ctx, events, StreamEvent{Type: EventToken, Text: chunk.Text}) {
				return
			}
		}
		if p.cancelled(ctx, requestID) {
			p.deps.Telemetry.ObserveCancellation()
			return
		}
		if chunk.Done {
			break
		}
	}

	text := full.String()
	verification := p.deps.Verifier.Verify(ctx, text, candidates, question)
	if !verification.IsVerified {
		text = p.deps.Verifier.RefusalMessage()
	}

	answer.RequestID = requestID
	answer.ChosenPath = router.PathRetrieval
	answer.AnswerText = text
	answer.Confidence = verification.Confidence
	answer.Verified = verification.IsVerified
	answer.Sources = sourceIDs(candidates)
	answer.Verification = &verification
	answer.ProcessingTime = time.Since(start).Seconds()

	p.deps.Telemetry.ObserveVerification(verification.IsVerified)
	p.deps.Telemetry.ObserveRequest(router.PathRetrieval, time.Since(start))
	p.emit(ctx, events, StreamEvent{Type: EventDone, Answer: &answer})
}

// emit sends unless the consumer went away.
func (p *Pipeline) emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
