package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/embed"
	"github.com/campus-kb/campusqa/internal/guardrail"
	"github.com/campus-kb/campusqa/internal/index"
	"github.com/campus-kb/campusqa/internal/indexer"
	"github.com/campus-kb/campusqa/internal/lexical"
	"github.com/campus-kb/campusqa/internal/llm"
	"github.com/campus-kb/campusqa/internal/pipeline"
	"github.com/campus-kb/campusqa/internal/retrieval"
	"github.com/campus-kb/campusqa/internal/router"
)

// askCMD answers a single question from a corpus file without a database,
// using the in-memory index.
func askCMD() *cobra.Command {
	var cfgPath string
	var corpusPath string

	var ask = &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question against a corpus file, no database needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			question := strings.Join(args, " ")
			if corpusPath == "" {
				corpusPath = cfg.Indexing.CorpusFile
			}
			if corpusPath == "" {
				return fmt.Errorf("corpus file required (--corpus or indexing.corpus_file)")
			}

			ctx := context.Background()
			corpus, err := indexer.LoadCorpus(corpusPath)
			if err != nil {
				return err
			}

			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			embedder := embed.NewCache(provider, cfg.Embedding)

			mem := index.NewMemoryIndex()
			ix := indexer.New(embedder, mem, cfg.Indexing.EmbedBatchSize)
			if _, err := ix.IndexCorpus(ctx, corpus); err != nil {
				return err
			}

			lexidx, err := lexical.New()
			if err != nil {
				return err
			}
			for ns := range corpus {
				chunks, err := mem.ListChunks(ctx, ns)
				if err != nil {
					return err
				}
				if err := lexidx.Load(ctx, chunks); err != nil {
					return err
				}
			}

			counter, err := retrieval.NewTokenCounter(cfg.Retrieval.TokenCounter)
			if err != nil {
				return err
			}
			engine := retrieval.NewEngine(cfg.Retrieval, embedder, mem, nil, lexidx, counter)

			pipe := pipeline.New(cfg, pipeline.Deps{
				Router:   router.NewFromConfig(cfg.Router, embedder),
				Engine:   engine,
				Verifier: guardrail.NewVerifier(cfg.Verification, nil),
				Provider: provider,
				Cancels:  pipeline.NewMemoryCancelRegistry(),
			})

			answer, err := pipe.Process(ctx, question, "")
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		},
	}
	ask.Flags().StringVar(&corpusPath, "corpus", "", "corpus JSON file")
	ask.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return ask
}
