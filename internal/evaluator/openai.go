package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds every evaluator API call.
const DefaultTimeout = 15 * time.Second

const contentSystemPrompt = `You are a content evaluator for a community claims platform.
Assess the INFORMATIONAL VALUE of the post. You do NOT determine truth or
correctness and you do NOT predict whether claims will be proven true or false.

Score each dimension 0-100:
1. CLARITY: how clearly the claim is presented
2. ORIGINALITY: whether it adds new information or perspective
3. RELEVANCE: whether the content is meaningful and topical
4. EFFORT: whether the post shows thoughtful effort and context
5. EVIDENTIARY VALUE: whether it provides specific, checkable information

Respond ONLY in this JSON format:
{"clarity_score": <0-100>, "originality_score": <0-100>, "relevance_score": <0-100>, "effort_score": <0-100>, "evidentiary_value_score": <0-100>, "summary": "<1-2 sentence summary>"}`

const similaritySystemPrompt = `You are a semantic similarity analyzer.
Compare two text snippets and rate how similar they are semantically on a 0-1
scale, considering topic, viewpoint, and whether one paraphrases the other.

Respond ONLY with JSON: {"similarity": <0.0-1.0>}`

// OpenAIConfig configures the OpenAI-backed evaluator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI implements Evaluator using the OpenAI chat completions API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a new OpenAI-backed evaluator.
func NewOpenAI(config OpenAIConfig) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("evaluator API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	model := config.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

// EvaluateContent scores a claim's informational value.
func (e *OpenAI) EvaluateContent(ctx context.Context, text, domain string) (*Scores, error) {
	if domain == "" {
		domain = "General"
	}
	prompt := fmt.Sprintf("DOMAIN: %s\nCONTENT: %s\n\nRemember: do NOT judge truth or correctness, only content quality and value.", domain, text)

	raw, err := e.complete(ctx, contentSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var scores Scores
	if err := json.Unmarshal([]byte(stripFences(raw)), &scores); err != nil {
		return nil, fmt.Errorf("%w: malformed evaluation response: %w", ErrUnavailable, err)
	}
	scores.Clamp()
	return &scores, nil
}

// JudgeSimilarity returns semantic similarity in [0, 1] between two texts.
// Inputs are truncated so a pathological claim cannot blow the token budget.
func (e *OpenAI) JudgeSimilarity(ctx context.Context, a, b string) (float64, error) {
	prompt := fmt.Sprintf("Text 1: %s\n\nText 2: %s", truncate(a, 400), truncate(b, 400))

	raw, err := e.complete(ctx, similaritySystemPrompt, prompt)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var result struct {
		Similarity float64 `json:"similarity"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		return 0, fmt.Errorf("%w: malformed similarity response: %w", ErrUnavailable, err)
	}

	if result.Similarity < 0 {
		result.Similarity = 0
	}
	if result.Similarity > 1 {
		result.Similarity = 1
	}
	return result.Similarity, nil
}

func (e *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripFences removes a markdown code fence around a JSON payload, which some
// models emit despite the JSON-only instruction.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
