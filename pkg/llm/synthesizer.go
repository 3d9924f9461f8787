package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

// SynthesizerConfig represents the configuration for answer generation.
type SynthesizerConfig struct {
	Model           string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	SimilarityFloor float32 // best evidence below this means "insufficient information"
}

// Synthesizer assembles retrieved evidence into a grounded prompt and
// derives a confidence score from the similarity distribution of that
// evidence. The model's own certainty is never load-bearing.
type Synthesizer struct {
	config SynthesizerConfig
	model  llms.Model
}

const insufficientAnswer = "The indexed documents do not contain enough information to answer this question."

var personas = map[models.AnswerMode]string{
	models.ModeAnalytical: "You are a precise business analyst. Answer concisely, " +
		"quote exact figures from the evidence, and name the source of each figure.",
	models.ModeConversational: "You are a helpful assistant. Answer in plain, " +
		"friendly language and mention which document the answer comes from.",
}

// groundingRules is appended to every persona; mode selection must never
// relax grounding discipline.
const groundingRules = " Use ONLY the supplied evidence passages. " +
	"If the evidence does not contain the answer, say so explicitly instead of guessing. " +
	"Never invent figures, names, or sources."

func NewSynthesizerWithConfig(config SynthesizerConfig) (*Synthesizer, error) {
	applySynthesizerDefaults(&config)

	opts := []openai.Option{openai.WithModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return NewSynthesizerWithModel(config, model), nil
}

// NewSynthesizerWithModel wires an explicit model, bypassing service setup.
func NewSynthesizerWithModel(config SynthesizerConfig, model llms.Model) *Synthesizer {
	applySynthesizerDefaults(&config)
	return &Synthesizer{config: config, model: model}
}

func applySynthesizerDefaults(config *SynthesizerConfig) {
	if config.Model == "" {
		config.Model = "gpt-4"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 500
	}
	if config.SimilarityFloor == 0 {
		config.SimilarityFloor = 0.25
	}
}

// Synthesize generates a grounded answer from the evidence. When no evidence
// clears the similarity floor it returns a low-confidence "insufficient
// information" result without calling the model at all.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []models.RetrievedEvidence, mode models.AnswerMode) (models.AnswerResult, error) {
	if len(evidence) == 0 || evidence[0].Similarity < s.config.SimilarityFloor {
		return models.AnswerResult{
			Answer:     insufficientAnswer,
			Confidence: 0,
			Sources:    evidence,
		}, nil
	}

	persona, ok := personas[mode]
	if !ok {
		persona = personas[models.ModeAnalytical]
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, persona+groundingRules),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(question, evidence)),
	}

	response, err := s.model.GenerateContent(ctx, content,
		llms.WithTemperature(s.config.Temperature),
		llms.WithMaxTokens(s.config.MaxTokens),
	)
	if err != nil {
		return models.AnswerResult{}, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}
	if len(response.Choices) == 0 {
		return models.AnswerResult{}, fmt.Errorf("%w: model returned no choices", types.ErrRetrievalUnavailable)
	}

	return models.AnswerResult{
		Answer:     strings.TrimSpace(response.Choices[0].Content),
		Confidence: confidence(evidence),
		Sources:    evidence,
	}, nil
}

func buildPrompt(question string, evidence []models.RetrievedEvidence) string {
	var b strings.Builder
	b.WriteString("Evidence from the user's documents:\n\n")
	for i, ev := range evidence {
		fmt.Fprintf(&b, "Source %d (%s, similarity %.2f):\n%s\n\n", i+1, ev.SourceName, ev.Similarity, ev.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", question)
	return b.String()
}

// confidence is a pure function of the retrieval similarity distribution:
// mostly the best match, discounted when the evidence set is spread thin.
// It stays computable whatever the model reports about itself.
func confidence(evidence []models.RetrievedEvidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	top := float64(evidence[0].Similarity)
	sum := 0.0
	for _, ev := range evidence {
		sum += float64(ev.Similarity)
	}
	mean := sum / float64(len(evidence))

	c := 0.7*top + 0.3*mean
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
