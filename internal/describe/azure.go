package describe

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/config"
	"github.com/nicholasgasior/markitdown-enrich/internal/logging"
)

// ChatCompleter is the part of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AzureChat describes images through an Azure OpenAI chat deployment.
type AzureChat struct {
	client     ChatCompleter
	deployment string
	log        *zap.Logger
}

// NewAzureChat wraps a chat client. Requests name deployment as the model.
func NewAzureChat(client ChatCompleter, deployment string, log *zap.Logger) *AzureChat {
	return &AzureChat{client: client, deployment: deployment, log: log}
}

func newAzureClient(cfg config.AzureConfig) *openai.Client {
	c := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	c.APIVersion = cfg.APIVersion
	c.AzureModelMapperFunc = func(string) string { return cfg.Deployment }
	return openai.NewClientWithConfig(c)
}

// Name returns the provider selector value.
func (a *AzureChat) Name() string { return string(KindAzureOpenAI) }

// Describe sends the prompt and image as one chat message. Failures are
// logged and reported as a Failed result.
func (a *AzureChat) Describe(ctx context.Context, img Image) Result {
	log := logging.FromContext(ctx, a.log).With(zap.String("provider", a.Name()))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.deployment,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: img.DataURI()}},
			},
		}},
	})
	if err != nil {
		log.Error("image description failed", zap.Error(err))
		return Result{Outcome: Failed}
	}
	if len(resp.Choices) == 0 {
		log.Warn("chat completion returned no choices")
		return Result{Outcome: Failed}
	}

	res := Interpret(resp.Choices[0].Message.Content)
	if res.Outcome == Failed {
		log.Warn("chat completion returned empty content")
	}
	return res
}
