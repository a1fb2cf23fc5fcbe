// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/docquery/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// healthProbeTimeout bounds the liveness probe so a dead backend is
// detected quickly instead of consuming the caller's full deadline.
const healthProbeTimeout = 5 * time.Second

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	host        string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for chat completions
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken("none"),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		host:        config.GenerationHost,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: healthProbeTimeout},
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Healthy probes the backend's model listing endpoint.
// Any 2xx response means the service is up and ready to accept requests.
func (g *Generator) Healthy(ctx context.Context) error {
	url := g.host + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ai.ErrGeneration, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug("health probe failed", "url", url, "err", err)
		return fmt.Errorf("%w: %w", ai.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Debug("health probe rejected", "url", url, "status", resp.StatusCode)
		return fmt.Errorf("%w: health probe returned status %d", ai.ErrGeneration, resp.StatusCode)
	}

	return nil
}

// GenerateStream requests a completion for prompt and forwards tokens to fn
// as they arrive from the backend.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, fn ai.StreamFunc) error {
	g.logger.Debug("starting streamed completion", "prompt_length", len(prompt))

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	_, err := g.client.GenerateContent(ctx, content,
		llms.WithMaxTokens(g.maxTokens),
		llms.WithTemperature(g.temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return fn(string(chunk))
		}),
	)
	if err != nil {
		g.logger.Error("streamed completion failed", "err", err)
		return fmt.Errorf("%w: %w", ai.ErrGeneration, err)
	}

	return nil
}
