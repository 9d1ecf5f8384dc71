package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Terminal prediction statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

type Client struct {
	baseURL      string
	apiToken     string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
}

type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

type predictionInput struct {
	Input map[string]interface{} `json:"input"`
}

func NewClient(baseURL, apiToken, model string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiToken:     apiToken,
		model:        model,
		pollInterval: 2 * time.Second,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Generate runs the model on (imageURL, prompt) and returns the URL of the
// generated image. The API may answer synchronously with a terminal
// prediction or hand back a pending one that has to be polled; both shapes
// normalize to a terminal result URL or an error. The context bounds the
// whole call including polling.
func (c *Client) Generate(ctx context.Context, imageURL, prompt string) (string, error) {
	// The create is safe to repeat: only the prediction returned by the
	// winning attempt is ever polled or read.
	var prediction *Prediction
	err := c.RetryWithBackoff(func() error {
		var createErr error
		prediction, createErr = c.createPrediction(ctx, imageURL, prompt)
		return createErr
	}, 3)
	if err != nil {
		return "", err
	}

	for !isTerminal(prediction.Status) {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("prediction %s did not finish: %w", prediction.ID, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		prediction, err = c.getPrediction(ctx, prediction.ID)
		if err != nil {
			return "", err
		}
	}

	if prediction.Status != StatusSucceeded {
		if prediction.Error != "" {
			return "", fmt.Errorf("prediction %s %s: %s", prediction.ID, prediction.Status, prediction.Error)
		}
		return "", fmt.Errorf("prediction %s %s", prediction.ID, prediction.Status)
	}

	outputURL, err := extractOutputURL(prediction.Output)
	if err != nil {
		return "", fmt.Errorf("prediction %s succeeded without usable output: %w", prediction.ID, err)
	}

	return outputURL, nil
}

func (c *Client) createPrediction(ctx context.Context, imageURL, prompt string) (*Prediction, error) {
	body := predictionInput{
		Input: map[string]interface{}{
			"prompt":      prompt,
			"image_input": []string{imageURL},
		},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(c.baseURL, "/") + "/models/" + c.model + "/predictions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	// Hold the connection open for a synchronous answer when the model is
	// fast enough; otherwise the response is a pending prediction to poll.
	req.Header.Set("Prefer", "wait")

	return c.doPredictionRequest(req)
}

func (c *Client) getPrediction(ctx context.Context, predictionID string) (*Prediction, error) {
	endpoint := strings.TrimSuffix(c.baseURL, "/") + "/predictions/" + predictionID
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	return c.doPredictionRequest(req)
}

func (c *Client) doPredictionRequest(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("prediction request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var prediction Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &prediction, nil
}

// Download fetches the generated image bytes from the result URL.
func (c *Client) Download(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download result: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func isTerminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCanceled
}

// extractOutputURL normalizes the output field, which depending on the model
// is a plain URL string, an array of URLs, or an object carrying a url key.
func extractOutputURL(output json.RawMessage) (string, error) {
	if len(output) == 0 || string(output) == "null" {
		return "", fmt.Errorf("output is empty")
	}

	var asString string
	if err := json.Unmarshal(output, &asString); err == nil {
		if asString == "" {
			return "", fmt.Errorf("output is an empty string")
		}
		return asString, nil
	}

	var asArray []string
	if err := json.Unmarshal(output, &asArray); err == nil {
		if len(asArray) == 0 || asArray[0] == "" {
			return "", fmt.Errorf("output array is empty")
		}
		return asArray[0], nil
	}

	var asObject struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(output, &asObject); err == nil && asObject.URL != "" {
		return asObject.URL, nil
	}

	return "", fmt.Errorf("unrecognized output shape: %s", string(output))
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
