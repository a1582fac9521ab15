package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"veostudio/internal/domain"
	"veostudio/internal/infra"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultFastModel      = "veo-3.1-fast-generate-preview"
	defaultReferenceModel = "veo-3.1-generate-preview"
	defaultResolution     = "720p"
	defaultReferenceMIME  = "image/png"

	apiKeyHeader     = "x-goog-api-key"
	maxResponseBytes = 1 << 20
	maxErrorBytes    = 64 << 10
)

// KeySource supplies the API key for each outbound call. It is consulted on
// every request so a newly selected key takes effect without rebuilding the
// client.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context) (string, error)

func (f KeySourceFunc) APIKey(ctx context.Context) (string, error) { return f(ctx) }

// StaticKey is a KeySource returning a fixed key.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) { return string(k), nil }

// Options controls how the Veo client is configured.
type Options struct {
	Keys           KeySource
	BaseURL        string
	FastModel      string
	ReferenceModel string
	Resolution     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Client talks to the Gemini long-running video generation endpoints:
// predictLongRunning to start an operation, a GET on the operation name to
// poll it, and a key-augmented URL to fetch the finished file. API calls
// carry the key in the x-goog-api-key header; only the playable URL carries
// it as a query parameter.
type Client struct {
	keys           KeySource
	baseURL        string
	fastModel      string
	referenceModel string
	resolution     string
	httpClient     *http.Client
	logger         *infra.Logger
}

// Reference is an image the reference-capable model keeps the subject
// consistent with. Data may be a data URI or raw base64.
type Reference struct {
	Data     string
	MimeType string
}

// SubmitRequest describes one video generation.
type SubmitRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Reference      *Reference
	RequestID      string
}

// Operation is the handle of a remote long-running operation.
type Operation struct {
	Name  string
	Model string
	Done  bool
}

// PollResult is the outcome of a single status check.
type PollResult struct {
	Done           bool
	ResultLocation string
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt          string           `json:"prompt"`
	ReferenceImages []referenceImage `json:"referenceImages,omitempty"`
}

type referenceImage struct {
	Image         inlineImage `json:"image"`
	ReferenceType string      `json:"referenceType"`
}

type inlineImage struct {
	InlineData geminiInlineData `json:"inlineData"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type predictParameters struct {
	AspectRatio    string `json:"aspectRatio,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	SampleCount    int    `json:"sampleCount,omitempty"`
}

type operationResponse struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *operationError `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Veo client with sane defaults. Callers may provide a
// nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	if opts.Keys == nil {
		return nil, fmt.Errorf("genai: key source is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}

	return &Client{
		keys:           opts.Keys,
		baseURL:        baseURL,
		fastModel:      firstNonEmpty(opts.FastModel, defaultFastModel),
		referenceModel: firstNonEmpty(opts.ReferenceModel, defaultReferenceModel),
		resolution:     firstNonEmpty(opts.Resolution, defaultResolution),
		httpClient:     client,
		logger:         logger,
	}, nil
}

// ModelFor returns the model variant used for a request: the
// reference-capable model when a reference image is attached, the fast model
// otherwise.
func (c *Client) ModelFor(withReference bool) string {
	if withReference {
		return c.referenceModel
	}
	return c.fastModel
}

// Submit starts a generation and returns its operation handle.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Operation, error) {
	model := c.ModelFor(req.Reference != nil)

	instance := predictInstance{Prompt: req.Prompt}
	if req.Reference != nil {
		mime, data := domain.SplitDataURI(req.Reference.Data)
		instance.ReferenceImages = []referenceImage{{
			Image: inlineImage{InlineData: geminiInlineData{
				MimeType: firstNonEmpty(req.Reference.MimeType, mime, defaultReferenceMIME),
				Data:     data,
			}},
			ReferenceType: "asset",
		}}
	}
	payload := predictRequest{
		Instances: []predictInstance{instance},
		Parameters: predictParameters{
			AspectRatio:    req.AspectRatio,
			NegativePrompt: req.NegativePrompt,
			Resolution:     c.resolution,
			SampleCount:    1,
		},
	}

	var resp operationResponse
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Name == "" {
		return nil, &RemoteError{Message: "operation name missing from response"}
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", model).
		Str("operation", resp.Name).
		Bool("reference", req.Reference != nil).
		Msg("genai: submitted video generation")

	return &Operation{Name: resp.Name, Model: model, Done: resp.Done}, nil
}

// Poll performs one status check of op. It never blocks beyond the request.
func (c *Client) Poll(ctx context.Context, op *Operation) (*PollResult, error) {
	if op == nil || strings.TrimSpace(op.Name) == "" {
		return nil, fmt.Errorf("genai: operation handle is required")
	}

	var resp operationResponse
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(op.Name, "/"), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Done {
		return &PollResult{}, nil
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, &RemoteError{StatusCode: resp.Error.Code, Message: resp.Error.Message}
	}

	var location string
	if resp.Response != nil {
		for _, sample := range resp.Response.GenerateVideoResponse.GeneratedSamples {
			if uri := strings.TrimSpace(sample.Video.URI); uri != "" {
				location = uri
				break
			}
		}
	}
	if location == "" {
		return nil, &RemoteError{Message: "No video URI returned from API."}
	}
	return &PollResult{Done: true, ResultLocation: location}, nil
}

// ResolveDownloadLocation turns a result location into a directly playable
// URL by attaching the current key as the `key` query parameter. Any key
// already present is replaced, so repeated calls produce the same URL unless
// the credential changed in between.
func (c *Client) ResolveDownloadLocation(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("genai: result location is required")
	}
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		location = c.baseURL + "/" + strings.TrimLeft(location, "/")
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("genai: parse result location: %w", err)
	}
	key, err := c.apiKey(ctx)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) apiKey(ctx context.Context) (string, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("genai: load api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload any, out any) error {
	key, err := c.apiKey(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &RemoteError{StatusCode: resp.StatusCode, Status: apiErr.Error.Status, Message: apiErr.Error.Message}
		}
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// transportError drops the request URL from a client failure so the message
// is safe to store on a job and to log.
func transportError(err error) *RemoteError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &RemoteError{Message: urlErr.Op + ": " + urlErr.Err.Error(), Err: urlErr.Err}
	}
	return &RemoteError{Message: err.Error(), Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
