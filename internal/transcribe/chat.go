package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/voxrelay/internal/metrics"
)

const (
	chatCompletionsPath = "/chat/completions"
	maxErrorBodyBytes   = 4096
)

// ChatOptions configures a ChatClient.
type ChatOptions struct {
	BaseURL string // e.g. "https://openrouter.ai/api/v1"
	APIKey  string
	Model   string
	Referer string // HTTP-Referer identification header
	Title   string // X-Title identification header
	Timeout time.Duration
}

// ChatClient sends audio to an OpenAI-compatible chat completions endpoint
// as an inline input_audio content part. Implements the Provider interface.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	referer string
	title   string
	client  *http.Client
}

// chatRequest is the JSON body of a chat completions call. Field names are
// fixed by the provider schema.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// chatResponse holds only the fields needed to locate the transcript.
// Content stays raw so a non-string value can be told apart from a missing one.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatClient creates a new chat completions client.
func NewChatClient(opts ChatOptions) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		referer: opts.Referer,
		title:   opts.Title,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Name returns the provider name.
func (c *ChatClient) Name() string { return "chat-completions" }

// Model returns the configured model identifier.
func (c *ChatClient) Model() string { return c.model }

// Transcribe posts the audio and instruction as one user message and returns
// the trimmed transcript from choices[0].message.content.
func (c *ChatClient) Transcribe(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, UpstreamAuth()
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "input_audio", InputAudio: &inputAudio{Data: req.AudioBase64, Format: req.Format.String()}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, UpstreamTransport(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		return nil, UpstreamTransport(err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, UpstreamHTTP(resp.StatusCode, errorBody(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, UpstreamSchema("read response: " + err.Error())
	}
	return parseChatResponse(body)
}

// errorBody returns the trimmed response body, or the status line if the
// body is unreadable or empty.
func errorBody(resp *http.Response) string {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	text := strings.TrimSpace(string(b))
	if err != nil || text == "" {
		return resp.Status
	}
	return text
}

func parseChatResponse(body []byte) (*Response, error) {
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, UpstreamSchema("invalid JSON")
	}
	if len(cr.Choices) == 0 {
		return nil, UpstreamSchema("no choices")
	}

	raw := cr.Choices[0].Message.Content
	if len(raw) == 0 || string(raw) == "null" {
		return nil, UpstreamSchema("content is absent")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, UpstreamSchema("content is not a string")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, UpstreamSchema("content is blank")
	}
	return &Response{Text: text, Model: cr.Model}, nil
}
