package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiOCRModel   = "gemini-2.0-flash"
	defaultGeminiOCRTimeout = 120
	geminiOCRPrompt         = "Extract all readable text from this image of study notes. Output only the text, preserving line breaks. Output nothing if there is no text."
)

type geminiOCRConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

type geminiOCR struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func init() {
	RegisterOCR("gemini", createGeminiOCR)
}

func createGeminiOCR(args interface{}) (OCR, error) {
	cfg := &geminiOCRConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini ocr api_key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiOCRModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGeminiOCRTimeout
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini ocr client: %w", err)
	}
	return &geminiOCR{client: client, model: model, timeout: time.Duration(timeout) * time.Second}, nil
}

func (g *geminiOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: geminiOCRPrompt},
		},
	}}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini ocr: %w", err)
	}
	return resp.Text(), nil
}
