package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/embed"
	"github.com/campus-kb/campusqa/internal/guardrail"
	"github.com/campus-kb/campusqa/internal/index"
	"github.com/campus-kb/campusqa/internal/indexer"
	"github.com/campus-kb/campusqa/internal/lexical"
	"github.com/campus-kb/campusqa/internal/llm"
	"github.com/campus-kb/campusqa/internal/pipeline"
	"github.com/campus-kb/campusqa/internal/rerank"
	"github.com/campus-kb/campusqa/internal/retrieval"
	"github.com/campus-kb/campusqa/internal/router"
	"github.com/campus-kb/campusqa/internal/store"
	"github.com/campus-kb/campusqa/internal/structured"
	"github.com/campus-kb/campusqa/internal/telemetry"
)

// Run starts the question answering service.
func Run(cfgPath string) error {
	cfg := config.LoadConfig(cfgPath)

	e := newEcho()
	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("[HTTP] migrations: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	embedder := embed.NewCache(provider, cfg.Embedding)

	var reranker rerank.Reranker
	if cfg.Reranker.Enabled {
		reranker = rerank.NewHTTPReranker(cfg.Reranker)
	}

	lexidx, err := lexical.New()
	if err != nil {
		return err
	}
	if err := seedLexical(ctx, lexidx, st, cfg.Retrieval.Namespaces); err != nil {
		log.Printf("[HTTP] lexical seed: %v", err)
	}

	counter, err := retrieval.NewTokenCounter(cfg.Retrieval.TokenCounter)
	if err != nil {
		return err
	}
	engine := retrieval.NewEngine(cfg.Retrieval, embedder, st, reranker, lexidx, counter)
	verifier := guardrail.NewVerifier(cfg.Verification, reranker)
	rt := router.NewFromConfig(cfg.Router, embedder)

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tel = telemetry.New(prometheus.DefaultRegisterer)
	}

	cancels := newCancelRegistry(cfg)

	pipe := pipeline.New(cfg, pipeline.Deps{
		Router:     rt,
		Engine:     engine,
		Verifier:   verifier,
		Provider:   provider,
		Translator: structured.NewLLMTranslator(provider, cfg.LLM.Routing.SQLGen),
		Executor:   structured.NewExecutor(st.DB, 0),
		Summarizer: structured.NewSummarizer(provider, cfg.LLM.Routing.Summarizing),
		Cancels:    cancels,
		Telemetry:  tel,
	})

	h := &AskHandler{Pipeline: pipe, Store: st, Timeout: cfg.General.DefaultTimeout}
	h.Register(e.Group("/api"))

	if cfg.Indexing.ReindexCron != "" && cfg.Indexing.CorpusFile != "" {
		ix := indexer.New(embedder, st, cfg.Indexing.EmbedBatchSize)
		go func() {
			err := ix.RunSchedule(ctx, cfg.Indexing.ReindexCron, func(jobCtx context.Context) error {
				corpus, err := indexer.LoadCorpus(cfg.Indexing.CorpusFile)
				if err != nil {
					return err
				}
				_, err = ix.IndexCorpus(jobCtx, corpus)
				return err
			})
			if err != nil && err != context.Canceled {
				log.Printf("[HTTP] reindex schedule stopped: %v", err)
			}
		}()
	}

	return e.Start(cfg.Server.Address)
}

// newEcho builds the router with the recover middleware and the unified JSON
// error handler.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	return e
}

func newCancelRegistry(cfg *config.Config) pipeline.CancelRegistry {
	if cfg.Storage.Redis.Host == "" {
		return pipeline.NewMemoryCancelRegistry()
	}
	port := cfg.Storage.Redis.Port
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Host + ":" + port,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	return pipeline.NewRedisCancelRegistry(client, 0)
}

// seedLexical loads every namespace's chunks into the in-memory BM25 index.
func seedLexical(ctx context.Context, lexidx *lexical.Index, lister index.Lister, namespaces []string) error {
	for _, ns := range namespaces {
		chunks, err := lister.ListChunks(ctx, ns)
		if err != nil {
			return fmt.Errorf("list %s: %w", ns, err)
		}
		if err := lexidx.Load(ctx, chunks); err != nil {
			return fmt.Errorf("load %s: %w", ns, err)
		}
	}
	return nil
}
