package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"counsel/internal/config"
	"counsel/internal/dispatch"
	"counsel/internal/embedding"
	"counsel/internal/generation"
	"counsel/internal/retrieval"
	"counsel/internal/session"
	"counsel/internal/store"
	"counsel/internal/suggest"
	"counsel/internal/types"
)

var (
	runFile string
	runTUI  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a suggestion session over a transcript stream",
	Long: `Starts a session with the personas from the config file and feeds it
transcript fragments line by line.

Each line is either a fragment JSON object
  {"text": "...", "speaker_is_self": false, "is_final": true}
or plain text, which is treated as a final fragment from the counterpart.

Reads stdin by default; --file reads a transcript file instead. --tui opens
a live view.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "transcript file (default: stdin)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "interactive live view")
}

// probeEmbedder verifies a locally served embedding backend is up before a
// session or ingest run starts depending on it. Engines without a health
// surface (remote APIs) pass through.
func probeEmbedder(ctx context.Context, embedder embedding.Engine) error {
	hc, ok := embedder.(embedding.HealthChecker)
	if !ok {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := hc.HealthCheck(probeCtx); err != nil {
		return fmt.Errorf("embedding backend %s is not reachable: %w", embedder.Name(), err)
	}
	return nil
}

// pipeline bundles everything one session needs.
type pipeline struct {
	session *session.Session
	store   *store.ChunkStore
	notices chan string
}

func (p *pipeline) Close() {
	p.store.Close()
}

// buildPipeline wires store, embedder, generation client, retrieval,
// generator, coordinator, and session from the loaded config.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cs, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.APIKey,
		GenAIModel:     cfg.Embedding.Model,
		TaskType:       "RETRIEVAL_QUERY",
	})
	if err != nil {
		cs.Close()
		return nil, err
	}
	if err := probeEmbedder(ctx, embedder); err != nil {
		cs.Close()
		return nil, err
	}

	genCfg := generation.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.GetLLMTimeout(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	if genCfg.APIKey == "" {
		genCfg, err = generation.DetectProvider()
		if err != nil {
			cs.Close()
			return nil, err
		}
	}
	client, err := generation.NewClient(genCfg)
	if err != nil {
		cs.Close()
		return nil, err
	}

	engine := retrieval.NewEngine(embedder, cs, retrieval.Options{
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		TopK:                cfg.Retrieval.TopK,
	})
	generator := suggest.NewGenerator(engine, client, suggest.Options{
		MaxHistoryTurns: cfg.Session.MaxHistoryTurns,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	})

	notices := make(chan string, 4)
	coordinator := dispatch.NewCoordinator(generator, dispatch.Options{
		Cooldown:       cfg.GetCooldown(),
		Stagger:        cfg.GetStagger(),
		NoticeInterval: cfg.GetNoticeInterval(),
		OnNotice: func(msg string) {
			select {
			case notices <- msg:
			default:
			}
		},
	})

	sess, err := session.New(coordinator, session.Config{
		Personas:      cfg.Personas,
		SpeakerFilter: cfg.Session.SpeakerFilter,
		QuestionsOnly: cfg.Session.Trigger == config.TriggerQuestionsOnly,
	})
	if err != nil {
		cs.Close()
		return nil, err
	}

	logger.Info("session started",
		zap.String("id", sess.ID()),
		zap.Int("personas", len(cfg.Personas)),
		zap.String("provider", client.Name()))

	return &pipeline{session: sess, store: cs, notices: notices}, nil
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var input io.Reader = os.Stdin
	if runFile != "" {
		f, err := os.Open(runFile)
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	if runTUI {
		return runLiveView(ctx, p, input)
	}

	// End the session on Ctrl-C; in-flight calls settle but their results
	// are dropped.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			p.session.End()
			cancel()
		case <-ctx.Done():
		}
	}()

	// Drain rate-limit notices to stderr alongside the suggestion stream.
	go func() {
		for {
			select {
			case msg := <-p.notices:
				p.session.NoteRateLimit()
				fmt.Fprintln(os.Stderr, renderNotice(msg))
			case <-ctx.Done():
				return
			}
		}
	}()

	renderer := newRenderer()
	err = session.Run(ctx, input, p.session, func(fragment types.TranscriptFragment, sug types.DedupedSuggestion) {
		fmt.Println(renderer.Suggestion(sug))
	})

	stats := p.session.End()
	fmt.Println(renderer.Stats(stats, p.session.ActivePersonas()))

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
