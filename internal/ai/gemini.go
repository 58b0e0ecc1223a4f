// Package ai はGemini APIによる履歴書テキストの構造化抽出を提供します。
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/yourusername/resume-forge/internal/resume"
)

// resumeSchema はGeminiに返させるJSONの構造を固定します。
var resumeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":  {Type: genai.TypeString},
		"email": {Type: genai.TypeString},
		"phone": {Type: genai.TypeString},
		"summary": {
			Type:        genai.TypeString,
			Description: "A 2-3 sentence summary of the candidate.",
		},
		"skills": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "A list of key skills and technologies.",
		},
		"experience": {
			Type:        genai.TypeArray,
			Description: "A list of relevant work experiences.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":   {Type: genai.TypeString},
					"company": {Type: genai.TypeString},
					"duration": {
						Type:        genai.TypeString,
						Description: "e.g., 'Jan 2020 - Present' or '3 years'",
					},
				},
			},
		},
		"education": {
			Type:        genai.TypeArray,
			Description: "A list of educational qualifications.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"degree":      {Type: genai.TypeString},
					"institution": {Type: genai.TypeString},
				},
			},
		},
	},
}

// Client は resume.Extractor のGemini実装です。
type Client struct {
	client     *genai.Client
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewClient はGeminiクライアントを作成します。APIキーは必須です。
func NewClient(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if model == "" {
		return nil, errors.New("model name is required")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:     client,
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Extract は履歴書テキストから構造化プロフィールを取り出します。
// 一時的な失敗に備えてクライアント内部でリトライします。
func (c *Client) Extract(ctx context.Context, text string) (*resume.Profile, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = resumeSchema

	prompt := fmt.Sprintf("Extract the relevant information from this resume text:\n\n%s", text)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err == nil {
			raw, err := textFromResponse(resp)
			if err == nil {
				return ParseProfileJSON(raw)
			}
			lastErr = err
		} else {
			lastErr = err
		}

		c.logger.Warn("Gemini call failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("gemini extraction failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Close はクライアントを閉じます。
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ParseProfileJSON はモデルの応答JSONをプロフィールに変換します。
// 欠けているフィールドはゼロ値のままになります。
func ParseProfileJSON(raw string) (*resume.Profile, error) {
	var profile resume.Profile
	if err := json.Unmarshal([]byte(cleanJSONBlock(raw)), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return &profile, nil
}

// cleanJSONBlock はMarkdownのコードブロック囲みを取り除きます。
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", errors.New("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// Disabled はAPIキー未設定時に使うExtractorで、常に失敗を返します。
// ワーカー側でプレースホルダー行に置き換えられます。
type Disabled struct{}

// Extract は常にエラーを返します。
func (Disabled) Extract(context.Context, string) (*resume.Profile, error) {
	return nil, errors.New("GEMINI_API_KEY is not configured")
}
