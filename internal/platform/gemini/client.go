package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client is a REST client for the Gemini generateContent API. It is used for
// HS code classification and report narrative generation; every call is
// accounted so a run can report its LLM usage.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	maxRetries int
	httpClient *http.Client

	mu    sync.Mutex
	usage Usage
}

// Usage accumulates call statistics across the lifetime of a client.
type Usage struct {
	Calls          int           `json:"calls"`
	Failures       int           `json:"failures"`
	PromptTokens   int           `json:"prompt_tokens"`
	ResponseTokens int           `json:"response_tokens"`
	TotalLatency   time.Duration `json:"-"`
}

// AvgLatency returns the mean wall-clock latency of successful calls.
func (u Usage) AvgLatency() time.Duration {
	if u.Calls == 0 {
		return 0
	}
	return u.TotalLatency / time.Duration(u.Calls)
}

// NewClient creates a Gemini client for the given model, e.g.
// "gemini-2.0-flash". An empty baseURL selects the public endpoint.
func NewClient(baseURL, model, apiKey string, timeout time.Duration, maxRetries int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     strings.TrimSpace(apiKey),
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// generateRequest is the generateContent request envelope.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// generateResponse is the generateContent response envelope.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateText sends a single-turn prompt and returns the text of the first
// candidate. Transient failures are retried with exponential backoff up to
// the configured attempt count; the context bounds the whole sequence.
func (c *Client) GenerateText(ctx context.Context, prompt string, temperature float64, jsonOutput bool) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{
			Temperature: temperature,
		},
	}
	if jsonOutput {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		text, promptTok, respTok, err := c.doGenerate(ctx, reqBody)
		if err == nil {
			c.recordSuccess(time.Since(start), promptTok, respTok)
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	c.recordFailure()
	return "", fmt.Errorf("gemini: generate content: %w", lastErr)
}

// LastUsage returns a snapshot of the accumulated usage counters.
func (c *Client) LastUsage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Client) recordSuccess(latency time.Duration, promptTok, respTok int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.Calls++
	c.usage.TotalLatency += latency
	c.usage.PromptTokens += promptTok
	c.usage.ResponseTokens += respTok
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.Failures++
}

func (c *Client) doGenerate(ctx context.Context, reqBody generateRequest) (text string, promptTok, respTok int, err error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", 0, 0, fmt.Errorf("decode response: %w", err)
	}
	if genResp.Error != nil {
		return "", 0, 0, fmt.Errorf("API error %d (%s): %s", genResp.Error.Code, genResp.Error.Status, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", 0, 0, fmt.Errorf("empty candidate list")
	}

	var sb strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(),
		genResp.UsageMetadata.PromptTokenCount,
		genResp.UsageMetadata.CandidatesTokenCount,
		nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
