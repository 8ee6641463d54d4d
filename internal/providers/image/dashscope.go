package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studio/internal/domain"
)

const dashscopeProviderName = "dashscope"

// DashScopeOptions controls how the DashScope client is configured.
type DashScopeOptions struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// DashScopeGenerator drives DashScope's asynchronous image API: it submits a
// task, then polls until the provider finishes or the context deadline runs
// out. The per-exchange HTTP timeout lives on the client; the total budget is
// the caller's context.
type DashScopeGenerator struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

func NewDashScopeGenerator(opts DashScopeOptions) *DashScopeGenerator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &DashScopeGenerator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		client:       client,
		pollInterval: interval,
	}
}

type dashscopeSubmitRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []dashscopeMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size,omitempty"`
	} `json:"parameters"`
}

type dashscopeMessage struct {
	Role    string           `json:"role"`
	Content []map[string]any `json:"content"`
}

type dashscopeSubmitResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dashscopeTaskResponse struct {
	Output struct {
		TaskStatus string `json:"task_status"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
		Message string `json:"message"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (d *DashScopeGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if d.apiKey == "" {
		return nil, domain.PermanentProviderError(dashscopeProviderName, errors.New("api key is missing"))
	}
	taskID, err := d.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	url, err := d.waitForResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return d.download(ctx, url)
}

func (d *DashScopeGenerator) submit(ctx context.Context, req GenerateRequest) (string, error) {
	var payload dashscopeSubmitRequest
	payload.Model = req.Model
	if payload.Model == "" {
		payload.Model = "qwen-image-edit"
	}
	content := []map[string]any{{"text": req.Prompt}}
	for _, ref := range req.References {
		mime := ref.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		content = append(content, map[string]any{
			"image": fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(ref.Data)),
		})
	}
	payload.Input.Messages = []dashscopeMessage{{Role: "user", Content: content}}
	payload.Parameters.Size = strings.ReplaceAll(req.Resolution, "x", "*")

	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.PermanentProviderError(dashscopeProviderName, err)
	}
	endpoint := d.baseURL + "/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.PermanentProviderError(dashscopeProviderName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	httpReq.Header.Set("X-DashScope-Async", "enable")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", domain.TransientProviderError(dashscopeProviderName, err)
	}
	defer resp.Body.Close()

	var out dashscopeSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classifyDashScopeStatus(resp.StatusCode, fmt.Errorf("decode submit response: %w", err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return "", classifyDashScopeStatus(resp.StatusCode, fmt.Errorf("%s (%s)", msg, out.Code))
	}
	if out.Output.TaskID == "" {
		return "", domain.PermanentProviderError(dashscopeProviderName, errors.New("submit returned no task id"))
	}
	return out.Output.TaskID, nil
}

// waitForResult polls the task endpoint until the provider reaches a terminal
// status. Context expiry is reported as transient: the provider may well have
// been healthy, just slow.
func (d *DashScopeGenerator) waitForResult(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		status, url, err := d.pollOnce(ctx, taskID)
		if err != nil {
			return "", err
		}
		switch status {
		case "SUCCEEDED":
			return url, nil
		case "FAILED", "CANCELED", "UNKNOWN":
			return "", domain.PermanentProviderError(dashscopeProviderName, fmt.Errorf("task %s ended with status %s", taskID, status))
		}

		select {
		case <-ctx.Done():
			return "", domain.TransientProviderError(dashscopeProviderName, fmt.Errorf("wait budget exhausted for task %s: %w", taskID, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (d *DashScopeGenerator) pollOnce(ctx context.Context, taskID string) (string, string, error) {
	endpoint := d.baseURL + "/tasks/" + taskID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", domain.PermanentProviderError(dashscopeProviderName, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", "", domain.TransientProviderError(dashscopeProviderName, err)
	}
	defer resp.Body.Close()

	var out dashscopeTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", classifyDashScopeStatus(resp.StatusCode, fmt.Errorf("decode task response: %w", err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return "", "", classifyDashScopeStatus(resp.StatusCode, errors.New(msg))
	}
	var url string
	if len(out.Output.Results) > 0 {
		url = out.Output.Results[0].URL
	}
	if out.Output.TaskStatus == "SUCCEEDED" && url == "" {
		return "", "", domain.PermanentProviderError(dashscopeProviderName, errors.New("task succeeded without a result url"))
	}
	return out.Output.TaskStatus, url, nil
}

func (d *DashScopeGenerator) download(ctx context.Context, url string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.PermanentProviderError(dashscopeProviderName, err)
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, domain.TransientProviderError(dashscopeProviderName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classifyDashScopeStatus(resp.StatusCode, fmt.Errorf("download http %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransientProviderError(dashscopeProviderName, err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return &Result{Data: data, MIMEType: mime}, nil
}

func classifyDashScopeStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.TransientProviderError(dashscopeProviderName, err)
	}
	return domain.PermanentProviderError(dashscopeProviderName, err)
}

var _ Generator = (*DashScopeGenerator)(nil)
