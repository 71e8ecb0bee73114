package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const noSpeechSentinel = "No speech detected"

// Classifier submits input to the sentiment model service.
type Classifier interface {
	ClassifyFile(ctx context.Context, filename string, content []byte) (Result, error)
	ClassifyText(ctx context.Context, text string) (Result, error)
}

// Breakdown holds per-modality contribution scores in [0,1].
type Breakdown struct {
	Video float64 `json:"video"`
	Audio float64 `json:"audio"`
	Text  float64 `json:"text"`
}

// Result is a normalized classification outcome. Transcript is empty when no
// speech was detected; the service's sentinel string never leaks through.
type Result struct {
	Sentiment     string
	Confidence    float64
	Transcript    string
	Breakdown     Breakdown
	Probabilities map[string]float64
}

// Client implements Classifier against the multimodal classifier HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("INFERENCE_URL is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("INFERENCE_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type classifyResponse struct {
	Success       bool               `json:"success"`
	Sentiment     string             `json:"sentiment"`
	Confidence    *float64           `json:"confidence"`
	Transcript    string             `json:"transcript"`
	Probabilities map[string]float64 `json:"probabilities"`
	Breakdown     *Breakdown         `json:"breakdown"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// ClassifyFile submits a video or audio payload as a single multipart upload.
func (c *Client) ClassifyFile(ctx context.Context, filename string, content []byte) (Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(content); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req)
}

// ClassifyText submits raw text. The classifier takes the string as a query
// parameter on its text endpoint.
func (c *Client) ClassifyText(ctx context.Context, text string) (Result, error) {
	endpoint := c.baseURL + "/api/analyze-text?" + url.Values{"text": {text}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := &ServerError{Status: resp.StatusCode}
		var parsed errorResponse
		if err := json.Unmarshal(body, &parsed); err == nil {
			serverErr.Detail = strings.TrimSpace(parsed.Detail)
		}
		return Result{}, serverErr
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return normalize(parsed)
}

func normalize(raw classifyResponse) (Result, error) {
	switch raw.Sentiment {
	case "Positive", "Negative", "Neutral":
	default:
		return Result{}, fmt.Errorf("%w: unknown sentiment %q", ErrMalformedResponse, raw.Sentiment)
	}
	if raw.Confidence == nil {
		return Result{}, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, *raw.Confidence)
	}

	result := Result{
		Sentiment:     raw.Sentiment,
		Confidence:    *raw.Confidence,
		Probabilities: raw.Probabilities,
	}
	if raw.Breakdown != nil {
		result.Breakdown = *raw.Breakdown
	}
	if transcript := strings.TrimSpace(raw.Transcript); transcript != noSpeechSentinel {
		result.Transcript = transcript
	}
	return result, nil
}

var _ Classifier = (*Client)(nil)
