package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type httpOCRConfig struct {
	BaseURL string `json:"base_url"`
	Timeout int    `json:"timeout"`
}

// httpOCR posts the image as multipart "file" to {base_url}/ocr/extract and
// expects {"success":bool,"text":string,"error":string}.
type httpOCR struct {
	baseURL string
	client  *http.Client
}

type httpOCRResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

func init() {
	RegisterOCR("http", createHTTPOCR)
}

func createHTTPOCR(args interface{}) (OCR, error) {
	cfg := &httpOCRConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("http ocr base_url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}
	return NewHTTPOCR(cfg.BaseURL, time.Duration(timeout)*time.Second), nil
}

func NewHTTPOCR(baseURL string, timeout time.Duration) OCR {
	return &httpOCR{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *httpOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "image"+extensionFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ocr request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out httpOCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("ocr processing failed: %s", out.Error)
	}
	return out.Text, nil
}

func extensionFor(mimeType string) string {
	for ext, mt := range imageMIMETypes {
		if mt == mimeType && ext != TypeJPEG {
			return "." + ext
		}
	}
	return ""
}
