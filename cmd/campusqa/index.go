package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campus-kb/campusqa/config"
	"github.com/campus-kb/campusqa/internal/embed"
	"github.com/campus-kb/campusqa/internal/indexer"
	"github.com/campus-kb/campusqa/internal/llm"
	"github.com/campus-kb/campusqa/internal/store"
)

func indexCMD() *cobra.Command {
	var cfgPath string
	var corpusPath string

	var index = &cobra.Command{
		Use:   "index",
		Short: "Embed a corpus file and load it into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
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

			st, err := store.New(ctx, cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer st.Close()

			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			embedder := embed.NewCache(provider, cfg.Embedding)

			ix := indexer.New(embedder, st, cfg.Indexing.EmbedBatchSize)
			counts, err := ix.IndexCorpus(ctx, corpus)
			if err != nil {
				return err
			}
			for ns, n := range counts {
				fmt.Printf("%s: %d chunks\n", ns, n)
			}
			return nil
		},
	}
	index.Flags().StringVar(&corpusPath, "corpus", "", "corpus JSON file")
	index.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return index
}
