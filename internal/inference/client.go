package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/shroomify/server/internal/observability"
)

// DefaultTimeout bounds a single model invocation. Cold starts on the
// inference host can take tens of seconds.
const DefaultTimeout = 60 * time.Second

// Result is the outcome of one classification request.
type Result struct {
	Classification int
	Confidence     float64
	HasConfidence  bool

	// NoFruitingBag is set when the model reports that the frame does not
	// contain a fruiting bag at all.
	NoFruitingBag bool
}

// Client talks to the contamination inference service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the inference service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiResponse mirrors the upload endpoint's JSON. Older deployments name
// the classification "result" instead of "prediction", and the error field
// arrives as a string on current backends and a boolean on older ones.
type apiResponse struct {
	Status     string          `json:"status"`
	Error      json.RawMessage `json:"error"`
	Prediction *int            `json:"prediction"`
	Result     *int            `json:"result"`
	Confidence *float64        `json:"confidence"`
	Image      string          `json:"image"`
}

// errorSet reports whether the error field carries a value, whatever its
// JSON type.
func errorSet(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", `""`:
		return false
	}
	return true
}

// Classify uploads a captured frame and returns the model's verdict. The
// backend delivers the no-bag sentinel as an HTTP 400 whose body still
// carries status "error", so the body is inspected before the status code.
func (c *Client) Classify(ctx context.Context, image []byte) (*Result, error) {
	ctx, span := observability.StartServiceSpan(ctx, "InferenceClient", "Classify")
	defer span.End()

	body, status, err := c.postImage(ctx, "/api/upload", image)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			err = fmt.Errorf("inference request returned status %d", status)
		} else {
			err = fmt.Errorf("inference response is not valid JSON: %w", err)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	if resp.Status == "error" && errorSet(resp.Error) {
		observability.SetSuccess(span)
		return &Result{NoFruitingBag: true}, nil
	}

	if status != http.StatusOK {
		err = fmt.Errorf("inference request returned status %d", status)
		observability.RecordError(span, err)
		return nil, err
	}

	classification := resp.Prediction
	if classification == nil {
		classification = resp.Result
	}
	if classification == nil {
		err = fmt.Errorf("inference response carries no prediction")
		observability.RecordError(span, err)
		return nil, err
	}

	result := &Result{Classification: *classification}
	if resp.Confidence != nil {
		result.Confidence = *resp.Confidence
		result.HasConfidence = true
	}

	observability.SetSuccess(span)
	return result, nil
}

// Heatmap uploads a frame, unwraps the JSON envelope the backend answers
// with, and returns the decoded heatmap image bytes with their content type.
func (c *Client) Heatmap(ctx context.Context, image []byte) ([]byte, string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "InferenceClient", "Heatmap")
	defer span.End()

	body, status, err := c.postImage(ctx, "/api/heatmap", image)
	if err != nil {
		observability.RecordError(span, err)
		return nil, "", err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			err = fmt.Errorf("heatmap request returned status %d", status)
		} else {
			err = fmt.Errorf("heatmap response is not valid JSON: %w", err)
		}
		observability.RecordError(span, err)
		return nil, "", err
	}
	if status != http.StatusOK || errorSet(resp.Error) {
		err = fmt.Errorf("heatmap request returned status %d", status)
		observability.RecordError(span, err)
		return nil, "", err
	}

	// The heatmap arrives base64-encoded as a JPEG.
	raw, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil || len(raw) == 0 {
		err = fmt.Errorf("heatmap response carries no image")
		observability.RecordError(span, err)
		return nil, "", err
	}

	observability.SetSuccess(span)
	return raw, "image/jpeg", nil
}

// postImage uploads the frame as a multipart form and returns the response
// body and status code. The error covers transport failures only; callers
// decide what a non-200 status means.
func (c *Client) postImage(ctx context.Context, path string, image []byte) ([]byte, int, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "scan.jpg")
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, 0, err
	}
	if err := writer.Close(); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return body, resp.StatusCode, nil
}
