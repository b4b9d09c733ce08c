package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"counsel/internal/embedding"
	"counsel/internal/ingest"
	"counsel/internal/store"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest knowledge documents into the chunk store",
	Long: `Chunks, embeds, and stores documents so personas can retrieve them.
Accepts files (.txt, .md, .html) and directories. Re-ingesting a path
replaces its chunks.

With --watch, directories are monitored and changed files are re-ingested
automatically until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch directories and re-ingest on change")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cs, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer cs.Close()

	embedder, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.APIKey,
		GenAIModel:     cfg.Embedding.Model,
		TaskType:       "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return err
	}
	if err := probeEmbedder(ctx, embedder); err != nil {
		return err
	}

	ingester := ingest.NewIngester(cs, embedder, ingest.ChunkerConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		MinChunkSize: cfg.Ingest.MinChunkSize,
	})

	var dirs []string
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			n, err := ingester.IngestDir(ctx, path)
			if err != nil {
				logger.Warn("directory partially ingested", zap.String("dir", path), zap.Error(err))
			}
			fmt.Printf("%s: %d files ingested\n", path, n)
			dirs = append(dirs, path)
			continue
		}
		doc, n, err := ingester.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d chunks\n", doc.Name, n)
	}

	if !ingestWatch {
		return nil
	}
	if len(dirs) == 0 {
		return fmt.Errorf("--watch needs at least one directory argument")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var watchers []*ingest.Watcher
	for _, dir := range dirs {
		w, err := ingest.NewWatcher(dir, ingester)
		if err != nil {
			return err
		}
		if err := w.Start(watchCtx); err != nil {
			return err
		}
		watchers = append(watchers, w)
		fmt.Printf("watching %s\n", dir)
	}
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-watchCtx.Done():
	}
	return nil
}
