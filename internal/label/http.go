package label

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/topic-harvester/internal/retry"
)

// ErrEmptyPrediction is returned when the endpoint answers with no label.
var ErrEmptyPrediction = errors.New("classifier returned no prediction")

// HTTPClassifier calls a text-classification inference endpoint that takes
// {"inputs": text} and answers with a list of label/score pairs.
type HTTPClassifier struct {
	endpoint string
	token    string
	http     *http.Client
	retry    *retry.Policy
}

var _ Classifier = (*HTTPClassifier)(nil)

// NewHTTPClassifier creates a client. policy may be nil for a single attempt.
func NewHTTPClassifier(endpoint, token string, timeout time.Duration, policy *retry.Policy) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if policy == nil {
		policy = retry.New(1, 0, nil)
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
		retry:    policy,
	}
}

// Classify implements Classifier and returns the highest scoring label.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	var lastErr error
	p, ok := retry.Do(ctx, c.retry, "classifier", func(ctx context.Context) (Prediction, error) {
		p, err := c.post(ctx, text)
		if err != nil {
			lastErr = err
		}
		return p, err
	})
	if !ok {
		if lastErr == nil {
			lastErr = ctx.Err()
		}
		return Prediction{}, fmt.Errorf("classify: %w", lastErr)
	}
	return p, nil
}

func (c *HTTPClassifier) post(ctx context.Context, text string) (Prediction, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	return best(raw)
}

// best accepts both the flat [{...}] and the nested [[{...}]] response shapes.
func best(raw json.RawMessage) (Prediction, error) {
	var flat []Prediction
	if err := json.Unmarshal(raw, &flat); err != nil {
		var nested [][]Prediction
		if err := json.Unmarshal(raw, &nested); err != nil {
			return Prediction{}, fmt.Errorf("decode predictions: %w", err)
		}
		for _, group := range nested {
			flat = append(flat, group...)
		}
	}
	if len(flat) == 0 {
		return Prediction{}, ErrEmptyPrediction
	}
	top := flat[0]
	for _, p := range flat[1:] {
		if p.Score > top.Score {
			top = p
		}
	}
	return top, nil
}
