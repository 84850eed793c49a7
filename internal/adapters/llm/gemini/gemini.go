package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/iamwavecut/prime/internal/adapters"
	"github.com/iamwavecut/prime/internal/adapters/llm"
	perrors "github.com/iamwavecut/prime/internal/errors"
	"github.com/iamwavecut/prime/internal/infra"
)

const DefaultModel = "gemini-2.5-flash"

var (
	_ adapters.LLM    = (*API)(nil)
	_ adapters.Vision = (*API)(nil)
)

// API talks to Gemini, walking the model list when a model is out of quota.
type API struct {
	client     *genai.Client
	models     []string
	parameters *llm.GenerationParameters
	logger     *log.Entry
}

func NewGemini(ctx context.Context, apiKey string, models []string, logger *log.Entry) (*API, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if len(models) == 0 {
		models = []string{DefaultModel}
	}
	return &API{
		client: client,
		models: models,
		parameters: &llm.GenerationParameters{
			Temperature:     0.2,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
		logger: logger,
	}, nil
}

func (g *API) Close() error {
	return g.client.Close()
}

func (g *API) model(name, mimeType string) *genai.GenerativeModel {
	model := g.client.GenerativeModel(name)
	model.SetTemperature(g.parameters.Temperature)
	model.SetTopK(g.parameters.TopK)
	model.SetTopP(g.parameters.TopP)
	model.SetMaxOutputTokens(g.parameters.MaxOutputTokens)
	model.ResponseMIMEType = mimeType
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	return model
}

// DescribeMedia sends the media inline together with the prompt and expects
// a JSON answer.
func (g *API) DescribeMedia(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	return g.generate(ctx, "application/json", nil, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(prompt))
}

func (g *API) ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	if len(messages) == 0 {
		return llm.ChatCompletionResponse{}, fmt.Errorf("%w: no messages", perrors.ErrInvalidInput)
	}

	var system *genai.Content
	parts := make([]genai.Part, 0, len(messages))
	for _, message := range messages {
		if message.Role == llm.RoleSystem {
			system = &genai.Content{Parts: []genai.Part{genai.Text(message.Content)}}
			continue
		}
		parts = append(parts, genai.Text(message.Content))
	}

	text, err := g.generate(ctx, "text/plain", system, parts...)
	if err != nil {
		return llm.ChatCompletionResponse{}, err
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: text}}},
	}, nil
}

func (g *API) generate(ctx context.Context, mimeType string, system *genai.Content, parts ...genai.Part) (string, error) {
	var lastErr error
	for _, name := range g.models {
		entry := g.logger.WithField("model", name)
		model := g.model(name, mimeType)
		model.SystemInstruction = system

		text, err := infra.WithRetry(ctx, func() (string, error) {
			resp, err := model.GenerateContent(ctx, parts...)
			if err != nil {
				return "", classifyError(err)
			}
			return responseText(resp)
		}, infra.AIRetryOptions())
		if err == nil {
			entry.Debug("generation succeeded")
			return text, nil
		}

		switch {
		case errors.Is(err, perrors.ErrContentBlocked):
			entry.Info("content blocked by safety filter")
			return "", err
		case errors.Is(err, errQuotaExhausted):
			entry.Warn("model exhausted, trying next")
		default:
			entry.WithError(err).Error("generation failed")
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all gemini models failed: %w", lastErr)
}

var errQuotaExhausted = errors.New("quota exhausted")

func classifyError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return infra.Permanent(fmt.Errorf("%w: %v", perrors.ErrContentBlocked, err))
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "safety"):
		return infra.Permanent(fmt.Errorf("%w: %v", perrors.ErrContentBlocked, err))
	case strings.Contains(msg, "429"), strings.Contains(msg, "exhausted"), strings.Contains(msg, "quota"):
		return infra.Permanent(fmt.Errorf("%w: %v", errQuotaExhausted, err))
	}
	return err
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response")
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", infra.Permanent(perrors.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", errors.New("empty candidate")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}
