package router

import (
	"context"
	"log"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/embed"
)

// Answer paths.
const (
	PathStructured = "structured"
	PathRetrieval  = "retrieval"
)

// Decision is the routing verdict for one question.
type Decision struct {
	Path         string  `json:"path"`
	Label        string  `json:"label"`
	MLConfidence float64 `json:"ml_confidence"`
	Forced       bool    `json:"forced"`
}

// Router picks the answer path for a question. Low-confidence simple
// predictions are never trusted: they get forced onto the retrieval path.
type Router struct {
	cfg        config.RouterConfig
	classifier Classifier
	embedder   embed.Embedder
	logger     *log.Logger
}

// New builds a router. The embedder may be nil; features are then lexical
// only, which the classifiers tolerate.
func New(cfg config.RouterConfig, classifier Classifier, embedder embed.Embedder) *Router {
	if classifier == nil {
		classifier = HeuristicClassifier{}
	}
	return &Router{
		cfg:        cfg,
		classifier: classifier,
		embedder:   embedder,
		logger:     log.New(log.Writer(), "[ROUTER] ", log.LstdFlags),
	}
}

// NewFromConfig builds a router, loading trained weights when configured and
// falling back to the heuristic classifier otherwise.
func NewFromConfig(cfg config.RouterConfig, embedder embed.Embedder) *Router {
	var classifier Classifier = HeuristicClassifier{}
	if cfg.WeightsFile != "" {
		loaded, err := LoadLogistic(cfg.WeightsFile)
		if err != nil {
			log.Printf("[ROUTER] weights file unusable, using heuristic classifier: %v", err)
		} else {
			classifier = loaded
		}
	}
	return New(cfg, classifier, embedder)
}

// Route classifies the question and decides the path. Deterministic for a
// fixed classifier state; never fails.
func (r *Router) Route(ctx context.Context, question string) Decision {
	var embedding []float32
	if r.embedder != nil {
		vecs, err := r.embedder.Embed(ctx, []string{question})
		if err != nil {
			r.logger.Printf("question embedding failed, using lexical features only: %v", err)
		} else if len(vecs) > 0 {
			embedding = vecs[0]
		}
	}

	label, probability := r.classifier.Predict(Features(question, embedding))

	decision := Decision{Path: PathRetrieval, Label: label, MLConfidence: probability}
	if label == LabelSimple {
		if probability < r.cfg.ConfidenceThreshold {
			decision.Forced = true
		} else {
			decision.Path = PathStructured
		}
	}
	return decision
}
