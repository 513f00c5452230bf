package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/config"
	"github.com/nicholasgasior/markitdown-enrich/internal/logging"
)

const anthropicVersion = "bedrock-2023-05-31"

// Invoker runs a model synchronously. The caller must close the returned body.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, body []byte) (io.ReadCloser, error)
}

type runtimeInvoker struct {
	client *bedrockruntime.Client
}

func newRuntimeInvoker(ctx context.Context, cfg config.BedrockConfig) (*runtimeInvoker, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &runtimeInvoker{client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

func (r *runtimeInvoker) Invoke(ctx context.Context, modelID string, body []byte) (io.ReadCloser, error) {
	out, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(out.Body)), nil
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Type   string         `json:"type"`
	Text   string         `json:"text,omitempty"`
	Source *bedrockSource `json:"source,omitempty"`
}

type bedrockSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type bedrockResponse struct {
	Content []bedrockBlock `json:"content"`
}

// Bedrock describes images by invoking an Anthropic model on AWS Bedrock.
type Bedrock struct {
	invoker Invoker
	modelID string
	log     *zap.Logger
}

// NewBedrock wraps an invoker for the given model.
func NewBedrock(invoker Invoker, modelID string, log *zap.Logger) *Bedrock {
	return &Bedrock{invoker: invoker, modelID: modelID, log: log}
}

// Name returns the provider selector value.
func (b *Bedrock) Name() string { return string(KindBedrock) }

// Describe invokes the model with an Anthropic messages envelope. The
// response body is closed on every path.
func (b *Bedrock) Describe(ctx context.Context, img Image) Result {
	log := logging.FromContext(ctx, b.log).With(zap.String("provider", b.Name()))

	payload, err := json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        MaxTokens,
		Temperature:      Temperature,
		Messages: []bedrockMessage{{
			Role: "user",
			Content: []bedrockBlock{
				{Type: "text", Text: Prompt},
				{Type: "image", Source: &bedrockSource{Type: "base64", MediaType: img.MIME, Data: img.Base64}},
			},
		}},
	})
	if err != nil {
		log.Error("encode bedrock request", zap.Error(err))
		return Result{Outcome: Failed}
	}

	body, err := b.invoker.Invoke(ctx, b.modelID, payload)
	if err != nil {
		log.Error("image description failed", zap.String("model_id", b.modelID), zap.Error(err))
		return Result{Outcome: Failed}
	}
	defer body.Close()

	var resp bedrockResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		log.Error("decode bedrock response", zap.Error(err))
		return Result{Outcome: Failed}
	}
	if len(resp.Content) == 0 {
		log.Warn("bedrock returned empty content")
		return Result{Outcome: Failed}
	}

	res := Interpret(resp.Content[0].Text)
	if res.Outcome == Failed {
		log.Warn("bedrock returned empty text")
	}
	return res
}
