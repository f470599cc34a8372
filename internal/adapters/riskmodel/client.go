// Package riskmodel is the HTTP client for the external fall-risk model
// behind the scoring augmentation boundary. The client is optional: any
// failure here surfaces as an error to the augmented scorer, which falls
// back to the rule-based result.
package riskmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/motionlab/stride/pkg/logger"
	"github.com/motionlab/stride/pkg/metrics"
)

// Client posts feature vectors to the model endpoint and returns its
// predicted composite score.
type Client struct {
	url    string
	client *http.Client
	log    logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// NewClient creates a model client for the given endpoint URL. Per-call
// deadlines come from the caller's context; the augmented scorer applies
// its configured timeout there.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: http.DefaultClient,
		log:    logger.Named("riskmodel"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// predictRequest is the model's input schema: the fixed-order feature
// vector, absent inputs encoded as -1.
type predictRequest struct {
	Features []float64 `json:"features"`
}

// predictResponse is the model's output schema.
type predictResponse struct {
	Score float64 `json:"score"`
}

// Predict sends one feature vector and returns the predicted score.
func (c *Client) Predict(ctx context.Context, features []float64) (float64, error) {
	payload, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return 0, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("riskmodel", "request_failed")
		return 0, fmt.Errorf("predict call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordErrorByComponent("riskmodel", "bad_status")
		c.log.Warn(ctx, "model returned non-200 status", logger.Int("status", resp.StatusCode))
		return 0, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RecordErrorByComponent("riskmodel", "bad_response")
		return 0, fmt.Errorf("decode predict response: %w", err)
	}
	return out.Score, nil
}
