package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/httpclient"
	"github.com/tradux/tradux/internal/logger"
	"github.com/tradux/tradux/internal/translator"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Client translates through the Gemini API.
type Client struct {
	client    *genai.Client
	modelName string
}

var _ translator.Translator = (*Client)(nil)

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.Auth(fmt.Errorf("gemini api key is missing"))
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	// option.WithHTTPClient interferes with genai's API key header
	// injection, so timeouts are enforced via context in Translate.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, modelName: modelName}, nil
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

// newModel returns a model handle carrying the instruction for one
// language pair. Handles are cheap and not shared between calls.
func (c *Client) newModel(sourceLang, targetLang string) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(translator.SystemPrompt(sourceLang, targetLang))},
	}
	return model
}

// Translate implements translator.Translator.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (translator.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	resp, err := c.newModel(sourceLang, targetLang).GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return translator.Result{}, classifyGeminiError(err)
	}
	if resp.UsageMetadata != nil {
		logger.Debug("Gemini usage",
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return parseResponse(resp)
}

func parseResponse(resp *genai.GenerateContentResponse) (translator.Result, error) {
	raw, err := extractResponseText(resp)
	if err != nil {
		return translator.Result{}, apperrors.Validation(err)
	}
	var reply translator.Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return translator.Result{}, apperrors.Validation(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return reply.Result()
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		var combined strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				combined.WriteString(string(text))
			}
		}
		if combined.Len() > 0 {
			return combined.String(), nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
