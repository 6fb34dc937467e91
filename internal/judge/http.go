package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roastbattle/backend/internal/battle"
)

// HTTPJudge calls the battle judge service with {"thread_text": ...}.
type HTTPJudge struct {
	baseURL string
	path    string
	timeout time.Duration
	http    *http.Client
}

func NewHTTPJudge(baseURL, path string, timeout time.Duration) *HTTPJudge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if strings.TrimSpace(path) == "" {
		path = "/judge_battle"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPJudge{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		path:    path,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

func (j *HTTPJudge) Score(ctx context.Context, threadText string) (Scorecard, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"thread_text": threadText})
	if err != nil {
		return Scorecard{}, err
	}
	raw, err := postJSON(ctx, j.http, j.baseURL+j.path, body)
	if err != nil {
		return Scorecard{}, fmt.Errorf("judge battle: %w", err)
	}
	return ParseScorecard(raw)
}

// Health probes GET {base}/health.
func (j *HTTPJudge) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := j.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("judge health: status=%d", resp.StatusCode)
	}
	return nil
}

// HTTPCommentator posts {"thread_text", "winner"} to a commentary relay.
type HTTPCommentator struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

func NewHTTPCommentator(url string, timeout time.Duration) *HTTPCommentator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPCommentator{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCommentator) Comment(ctx context.Context, threadText string, winner battle.Winner) (battle.Commentary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"thread_text": threadText, "winner": string(winner)})
	if err != nil {
		return battle.Commentary{}, err
	}
	raw, err := postJSON(ctx, c.http, c.url, body)
	if err != nil {
		return battle.Commentary{}, fmt.Errorf("commentary: %w", err)
	}
	return ParseCommentary(string(raw))
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return raw, nil
}
