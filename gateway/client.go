package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// APIError is returned when the gateway answers with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("wallet gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("wallet gateway returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the send later could succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type messageRequest struct {
	Message string `json:"message"`
}

// Client sends push messages to wallet passes over the gateway's HTTP API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a gateway client. ratePerSec <= 0 disables client-side rate limiting.
func NewClient(baseURL, apiKey string, ratePerSec float64, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}

	var limiter *rate.Limiter
	if ratePerSec > 0 {
		burst := max(int(ratePerSec), 1)
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		limiter: limiter,
	}
}

// SendMessage pushes text to one wallet pass
func (c *Client) SendMessage(ctx context.Context, walletInternalID, walletProgramID, text string) error {
	if walletInternalID == "" || walletProgramID == "" {
		return fmt.Errorf("wallet pass and program ids are required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/v1/programs/%s/passes/%s/messages",
		c.baseURL, url.PathEscape(walletProgramID), url.PathEscape(walletInternalID))

	body, err := json.Marshal(messageRequest{Message: text})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("message request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	log.WithFields(log.Fields{
		"walletProgramId":  walletProgramID,
		"walletInternalId": walletInternalID,
	}).Debug("Wallet message delivered")
	return nil
}
