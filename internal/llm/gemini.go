package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/grailmeter/grail-meter/internal/config"
)

// Gemini talks to Google's Gemini models through their OpenAI-compatible
// chat completions endpoint.
type Gemini struct {
	client *openai.Client
	cfg    *config.GeminiConfig
}

func NewGemini(cfg *config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.APIEndpoint),
	)

	return &Gemini{
		client: client,
		cfg:    cfg,
	}, nil
}

// AnalyzeImage sends the image as an inline data URI together with the SEO
// extraction prompt and returns the model's completion text verbatim.
func (g *Gemini) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := g.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Model: openai.F(g.cfg.Model),
			Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(SystemPrompt),
				openai.UserMessageParts(
					openai.TextPart("Analyze this clothing item."),
					openai.ImagePart(dataURI),
				),
			}),
			Temperature: openai.F(0.0),
			MaxTokens:   openai.F(g.cfg.MaxTokens),
		},
	)
	if err != nil {
		return "", fmt.Errorf("vision completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("vision model returned an empty response")
	}

	slog.Debug("vision completion received",
		"model", g.cfg.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
