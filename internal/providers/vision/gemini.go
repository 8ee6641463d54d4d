package vision

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studio/internal/domain"
)

const providerName = "gemini-vision"

// SourceImage is one inline image handed to the vision model.
type SourceImage struct {
	MIMEType string
	Data     []byte
}

// Extractor turns a set of source images plus an instruction into a
// natural-language scene prompt.
type Extractor interface {
	Extract(ctx context.Context, images []SourceImage, instruction string) (string, error)
}

// GeminiOptions controls how the Gemini vision client is configured.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiExtractor calls the Gemini generateContent API with inline image
// parts. Without an API key it falls back to deterministic synthetic prompts
// so workers stay operational in local and CI environments.
type GeminiExtractor struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiExtractor(opts GeminiOptions) *GeminiExtractor {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiExtractor{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

func (g *GeminiExtractor) Extract(ctx context.Context, images []SourceImage, instruction string) (string, error) {
	if len(images) == 0 {
		return "", domain.PermanentProviderError(providerName, errors.New("no source images"))
	}
	if g.apiKey == "" {
		return g.syntheticPrompt(images, instruction), nil
	}

	parts := []geminiPart{{Text: instruction}}
	for _, img := range images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	payload := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: parts}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.PermanentProviderError(providerName, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.PermanentProviderError(providerName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// Network failures and timeouts are worth another try.
		return "", domain.TransientProviderError(providerName, err)
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classifyStatus(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return "", classifyStatus(resp.StatusCode, errors.New(msg))
	}
	text := firstText(out)
	if text == "" {
		return "", domain.PermanentProviderError(providerName, errors.New("empty prompt in response"))
	}
	return text, nil
}

// syntheticPrompt derives a stable prompt from the inputs so the pipeline is
// exercisable end to end without credentials.
func (g *GeminiExtractor) syntheticPrompt(images []SourceImage, instruction string) string {
	h := sha256.New()
	h.Write([]byte(instruction))
	for _, img := range images {
		h.Write(img.Data)
	}
	digest := hex.EncodeToString(h.Sum(nil))[:12]
	return fmt.Sprintf(
		"A photorealistic product scene (%d reference image(s), variant %s): the product placed on a clean studio surface with soft diffused lighting, shallow depth of field and a neutral backdrop.",
		len(images), digest)
}

func firstText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func classifyStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.TransientProviderError(providerName, err)
	}
	return domain.PermanentProviderError(providerName, err)
}
