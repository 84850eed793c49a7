package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/adapters"
	"github.com/iamwavecut/prime/internal/adapters/llm"
	perrors "github.com/iamwavecut/prime/internal/errors"
)

var _ adapters.LLM = (*API)(nil)

// API is an OpenAI-compatible chat client. Groq and xAI are reached through
// their OpenAI-compatible base URLs.
type API struct {
	client     *openai.Client
	model      string
	parameters *llm.GenerationParameters
	logger     *log.Entry
}

const DefaultModel = "gpt-4o-mini"

func NewOpenAI(apiKey, model, baseURL string, logger *log.Entry) *API {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &API{
		client: openai.NewClientWithConfig(config),
		model:  model,
		parameters: &llm.GenerationParameters{
			Temperature:     0.3,
			TopP:            0.9,
			MaxOutputTokens: 1024,
		},
		logger: logger,
	}
}

func (o *API) ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    openaiMessages,
		Temperature: o.parameters.Temperature,
		TopP:        o.parameters.TopP,
		MaxTokens:   int(o.parameters.MaxOutputTokens),
	})
	if err != nil {
		o.logger.WithError(err).WithField("model", o.model).Warn("chat completion failed")
		return llm.ChatCompletionResponse{}, err
	}

	if len(resp.Choices) == 0 {
		return llm.ChatCompletionResponse{}, nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return llm.ChatCompletionResponse{}, fmt.Errorf("%w: model %s", perrors.ErrContentBlocked, o.model)
	}

	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{
			{
				Message: llm.ChatCompletionMessage{
					Role:    choice.Message.Role,
					Content: choice.Message.Content,
				},
				FinishReason: string(choice.FinishReason),
			},
		},
	}, nil
}
