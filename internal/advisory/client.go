package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrNotConfigured = errors.New("advisory collaborator not configured")
	ErrUnavailable   = errors.New("advisory collaborator unavailable")
)

// Client talks to the external advisory-text collaborator. Responses are
// human-readable commentary only; the deterministic risk classification in
// pkg/amortize is never substituted by (or derived from) this text, and a
// failure here is surfaced, not papered over with canned output.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Configured() bool { return c.endpoint != "" }

type assessRequest struct {
	Prompt string `json:"prompt"`
}

type assessResponse struct {
	Text string `json:"text"`
}

func (c *Client) AssessText(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(assessRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out assessResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: bad response: %v", ErrUnavailable, err)
	}
	return out.Text, nil
}

// LoanPrompt renders the risk-commentary request for one loan application.
func LoanPrompt(principal, ratePct float64, months int, purpose, description string) string {
	return fmt.Sprintf(
		"As a financial risk assessor, analyze this microloan request and provide a brief assessment:\n\n"+
			"Loan Amount: %.4f\nInterest Rate: %.2f%% APR\nDuration: %d months\nPurpose: %s\nDescription: %s\n\n"+
			"Provide key considerations and a recommendation for the borrower. Keep the response concise and practical.",
		principal, ratePct, months, purpose, description)
}
