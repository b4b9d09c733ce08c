package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"counsel/internal/logging"
)

// =============================================================================
// GOOGLE GENAI ENGINE
// =============================================================================

// Task type strings accepted by the GenAI embedding API.
const (
	taskRetrievalDocument  = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery     = "RETRIEVAL_QUERY"
	taskSemanticSimilarity = "SEMANTIC_SIMILARITY"
	taskQuestionAnswering  = "QUESTION_ANSWERING"
)

// GenAIEngine embeds text through the Google GenAI API.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIEngine creates a GenAI embedding engine. taskType tunes how
// document embeddings are optimized; see normalizeTaskType for accepted
// values.
func NewGenAIEngine(ctx context.Context, apiKey, model, taskType string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    model,
		taskType: normalizeTaskType(taskType),
	}, nil
}

func normalizeTaskType(taskType string) string {
	switch taskType {
	case taskRetrievalDocument, taskRetrievalQuery, taskSemanticSimilarity, taskQuestionAnswering:
		return taskType
	case "":
		return taskRetrievalDocument
	default:
		logging.Get(logging.CategoryEmbedding).Warn("unknown task type %q, using %s", taskType, taskRetrievalDocument)
		return taskRetrievalDocument
	}
}

// Embed generates a document embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, e.taskType)
}

// EmbedQuery generates a query-side embedding. Gemini embedding models are
// asymmetric: queries and documents are projected differently, and marking
// the query side improves retrieval quality.
func (e *GenAIEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalQuery)
}

func (e *GenAIEngine) embed(ctx context.Context, text string, task string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: task,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: GenAI embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding: GenAI returned no embeddings")
	}

	return result.Embeddings[0].Values, nil
}

// EmbedBatch generates document embeddings for multiple texts in one API
// call. GenAI has native batch support.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: e.taskType,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: GenAI batch embed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Dimensions returns 768, the width gemini-embedding-001 produces.
func (e *GenAIEngine) Dimensions() int {
	return 768
}

// Name returns the engine name for logging.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}
