// Package digisac sends reminders through the Digisac messaging API.
package digisac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"billremind/internal/messaging"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

type sendRequest struct {
	ContactID string `json:"contactId"`
	Text      string `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// New creates a client for the API rooted at baseURL.
func New(baseURL, token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = defaultTimeout
	rc.CheckRetry = checkRetry
	rc.Logger = slog.Default().With("component", "messaging", "provider", "digisac")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    rc,
	}
}

// Send posts text to the contact's conversation.
func (c *Client) Send(ctx context.Context, to messaging.Recipient, text string) (messaging.Receipt, error) {
	if to.ContactRef == "" {
		return messaging.Receipt{}, fmt.Errorf("recipient %q has no digisac contact", to.Name)
	}

	body, err := json.Marshal(sendRequest{ContactID: to.ContactRef, Text: text})
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("encode message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return messaging.Receipt{}, fmt.Errorf("digisac returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out sendResponse
	// The id is informational; an unexpected body does not fail the send.
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return messaging.Receipt{Channel: "digisac", MessageID: out.ID}, nil
}

// checkRetry retries only when the message cannot have been accepted:
// the connection was never made, or the server refused it up front.
// POST /messages is not idempotent, so a generic 5xx or a read timeout
// is returned to the caller instead of risking a duplicate reminder.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var opErr *net.OpError
		return errors.As(err, &opErr) && opErr.Op == "dial", nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true, nil
	case http.StatusServiceUnavailable:
		return resp.Header.Get("Retry-After") != "", nil
	}
	return false, nil
}
