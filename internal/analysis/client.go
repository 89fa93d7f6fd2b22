// Package analysis wraps the external analysis/decision collaborator behind
// a single blocking call. The client speaks the Gemini REST generateContent
// shape; failures are returned as plain errors for the session runner to
// absorb.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when the client has no API key. Callers treat
// it like any other collaborator failure.
var ErrNotConfigured = errors.New("analysis client not configured")

type Client struct {
	apiKey string
	url    string
	client *http.Client
}

// NewClient builds a client for the given model endpoint. An empty apiKey is
// allowed; every call then fails with ErrNotConfigured so the orchestration
// layer degrades to zero-effect sessions instead of crashing.
func NewClient(endpoint, model, apiKey string) *Client {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if apiKey == "" {
		log.Warn().Msg("no analysis API key configured, sessions will be no-ops")
	}

	return &Client{
		apiKey: apiKey,
		url:    fmt.Sprintf("%s/models/%s:generateContent", endpoint, model),
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze sends the prompt to the model and returns its free-text output.
// The call may be slow; the HTTP client bounds it with its own timeout.
func (c *Client) Analyze(prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.url+"?key="+c.apiKey, bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("analysis API error %d: %s", resp.StatusCode, string(body))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no candidates in analysis response")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
