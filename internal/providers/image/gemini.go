package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studio/internal/domain"
)

const geminiProviderName = "gemini-image"

// GeminiOptions controls how the Gemini image client is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiGenerator renders images through the Gemini generateContent API.
// Without an API key it synthesizes deterministic placeholder renders so the
// whole pipeline runs in local and CI environments.
type GeminiGenerator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGeminiGenerator(opts GeminiOptions) *GeminiGenerator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiGenerator{
		apiKey:  strings.TrimSpace(opts.APIKey),
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

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
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

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.PermanentProviderError(geminiProviderName, errors.New("prompt is required"))
	}
	if g.apiKey == "" {
		return g.syntheticRender(req)
	}

	parts := []geminiPart{{Text: buildPromptText(req)}}
	for _, ref := range req.References {
		mime := ref.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	payload := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.PermanentProviderError(geminiProviderName, err)
	}

	model := req.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.PermanentProviderError(geminiProviderName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, domain.TransientProviderError(geminiProviderName, err)
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classifyGeminiStatus(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return nil, classifyGeminiStatus(resp.StatusCode, errors.New(msg))
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, domain.PermanentProviderError(geminiProviderName, fmt.Errorf("decode image payload: %w", err))
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return &Result{Data: data, MIMEType: mime}, nil
		}
	}
	return nil, domain.PermanentProviderError(geminiProviderName, errors.New("no image in response"))
}

func buildPromptText(req GenerateRequest) string {
	parts := []string{req.Prompt}
	if req.AspectRatio != "" {
		parts = append(parts, "Compose for a "+req.AspectRatio+" aspect ratio.")
	}
	return strings.Join(parts, " ")
}

// syntheticRender produces a deterministic solid-tone JPEG at the requested
// resolution, keyed by the prompt hash.
func (g *GeminiGenerator) syntheticRender(req GenerateRequest) (*Result, error) {
	width, height := parseResolution(req.Resolution)
	digest := sha256.Sum256([]byte(req.Prompt))
	fill := color.RGBA{R: digest[0], G: digest[1], B: digest[2], A: 255}

	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, domain.PermanentProviderError(geminiProviderName, err)
	}
	return &Result{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

func parseResolution(res string) (int, int) {
	parts := strings.SplitN(res, "x", 2)
	if len(parts) == 2 {
		w, errW := strconv.Atoi(parts[0])
		h, errH := strconv.Atoi(parts[1])
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 1024, 1024
}

func classifyGeminiStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.TransientProviderError(geminiProviderName, err)
	}
	return domain.PermanentProviderError(geminiProviderName, err)
}

var _ Generator = (*GeminiGenerator)(nil)
