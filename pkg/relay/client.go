package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/weareedt/organic/internal/httpc"
)

// Client talks to the relay service over HTTP.
type Client struct {
	baseURL   string
	sessionID string
	model     string
	language  string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a relay client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		model:    DefaultModel,
		language: DefaultLanguage,
		http:     httpc.NewClient(DefaultTimeout),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.logger = c.logger.With("component", "relay")
	return c
}

// Transcribe uploads an audio segment to /api/transcribe and returns the
// recognized text. An empty transcript is a valid result.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "recording.ogg")
	if err != nil {
		return "", fmt.Errorf("relay: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("relay: write form file: %w", err)
	}
	if err := w.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("relay: write model field: %w", err)
	}
	if err := w.WriteField("language", c.language); err != nil {
		return "", fmt.Errorf("relay: write language field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("relay: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	raw, err := c.doRaw(req, "/api/transcribe")
	if err != nil {
		return "", err
	}

	// The relay normally wraps the transcript in JSON, but a bare string
	// body is tolerated as the transcript itself.
	var result struct {
		Text string `json:"text"`
	}
	text := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &result); err == nil {
		text = result.Text
	}

	c.logger.Debug("transcription complete", "chars", len(text))
	return text, nil
}

// ForwardMessage sends a user message to /api/forward_message and returns
// the assistant's reply text.
func (c *Client) ForwardMessage(ctx context.Context, message string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"message":    message,
		"session_id": c.sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("relay: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/forward_message", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Response struct {
			Text *string `json:"text"`
		} `json:"response"`
	}
	if err := c.do(req, "/api/forward_message", &result); err != nil {
		return "", err
	}
	if result.Response.Text == nil {
		return "", ErrMalformedReply
	}

	c.logger.Debug("reply received", "chars", len(*result.Response.Text))
	return *result.Response.Text, nil
}

// Synthesize sends reply text to /api/tts and returns decoded audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("relay: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Audio string `json:"audio"`
	}
	if err := c.do(req, "/api/tts", &result); err != nil {
		return nil, err
	}
	if result.Audio == "" {
		return nil, ErrMalformedReply
	}

	audio, err := base64.StdEncoding.DecodeString(result.Audio)
	if err != nil {
		return nil, fmt.Errorf("relay: decode tts audio: %w", err)
	}

	c.logger.Debug("synthesis complete", "bytes", len(audio))
	return audio, nil
}

// do executes a request and decodes a JSON success body into out.
func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	raw, err := c.doRaw(req, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}

// doRaw executes a request and returns the success body bytes.
func (c *Client) doRaw(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return io.ReadAll(resp.Body)
}

var _ Service = (*Client)(nil)
