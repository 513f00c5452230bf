// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package describe asks a vision model to transcribe or describe an image.
package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/config"
)

// SkipToken is the reply a model gives for purely decorative images.
const SkipToken = "SKIP"

// Prompt is sent alongside every image.
const Prompt = "If the image contains any text, information, data, or content (including posters, signs, charts, " +
	"tables, diagrams, forms, screenshots, documents, or any readable material), extract and transcribe ALL visible " +
	"text and information exactly word-for-word. Output only the raw extracted content without any introductory " +
	"phrases like 'this image shows' or 'the image contains'. For non-text content like charts or diagrams, provide " +
	"the exact data, values, labels, and structural information present. If the image is purely decorative (logos, " +
	"icons, backgrounds, dividers) with no meaningful information, reply exactly with SKIP and nothing else."

// Request parameters shared by both providers.
const (
	Temperature = 0.2
	MaxTokens   = 4000
)

// Outcome classifies a model reply.
type Outcome int

const (
	// Failed means no usable description was produced.
	Failed Outcome = iota
	// Described means Text holds the description.
	Described
	// Skipped means the model marked the image as decorative.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Described:
		return "described"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the outcome of describing one image.
type Result struct {
	Text    string
	Outcome Outcome
}

// Interpret turns a raw reply into a Result. A reply is a skip when, after
// trimming whitespace and trailing '.' or '!', it equals SkipToken ignoring
// case. Replies that merely start with "skip" are descriptions.
func Interpret(reply string) Result {
	text := strings.TrimSpace(reply)
	if text == "" {
		return Result{Outcome: Failed}
	}
	if strings.EqualFold(strings.TrimRight(text, ".! "), SkipToken) {
		return Result{Outcome: Skipped}
	}
	return Result{Text: text, Outcome: Described}
}

// Image is a base64 payload ready to send.
type Image struct {
	MIME   string
	Base64 string
}

// DataURI returns the image as a data: URI.
func (i Image) DataURI() string {
	return "data:" + i.MIME + ";base64," + i.Base64
}

// Provider describes images. Implementations never return errors from
// Describe; failures are logged and reported as a Failed outcome.
type Provider interface {
	Name() string
	Describe(ctx context.Context, img Image) Result
}

// Kind selects a provider implementation.
type Kind string

const (
	KindAzureOpenAI Kind = "azure_openai"
	KindBedrock     Kind = "aws_bedrock"
)

// ErrUnknownProvider is returned for an unrecognised provider selector.
var ErrUnknownProvider = errors.New("unknown model provider")

// ParseKind validates a provider selector. The empty string selects Azure
// OpenAI.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAzureOpenAI, nil
	case KindAzureOpenAI, KindBedrock:
		return k, nil
	default:
		return "", fmt.Errorf("%w %q: want %s or %s", ErrUnknownProvider, s, KindAzureOpenAI, KindBedrock)
	}
}

// ConfigError reports a provider that cannot be constructed.
type ConfigError struct {
	Provider Kind
	Missing  []string
	Err      error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s provider not configured: missing %s", e.Provider, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s provider not configured: %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// New builds the provider selected by kind from cfg.
func New(ctx context.Context, kind Kind, cfg config.Config, log *zap.Logger) (Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch kind {
	case KindAzureOpenAI:
		if m := cfg.Azure.Missing(); len(m) > 0 {
			return nil, &ConfigError{Provider: kind, Missing: m}
		}
		return NewAzureChat(newAzureClient(cfg.Azure), cfg.Azure.Deployment, log), nil
	case KindBedrock:
		if m := cfg.Bedrock.Missing(); len(m) > 0 {
			return nil, &ConfigError{Provider: kind, Missing: m}
		}
		invoker, err := newRuntimeInvoker(ctx, cfg.Bedrock)
		if err != nil {
			return nil, &ConfigError{Provider: kind, Err: err}
		}
		return NewBedrock(invoker, cfg.Bedrock.ModelID, log), nil
	default:
		return nil, &ConfigError{Provider: kind, Err: ErrUnknownProvider}
	}
}
