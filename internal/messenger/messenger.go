// Package messenger delivers outgoing text messages through the messaging
// daemon's HTTP API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
)

const defaultRequestTimeout = 15 * time.Second

// ErrDeliveryFailed reports that the messaging daemon refused or failed the
// send.
var ErrDeliveryFailed = errors.New("message delivery failed")

// Client implements payments.Messenger against a messaging daemon base URL.
// Safe for concurrent use.
type Client struct {
	client  *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(messengerClient *Client) {
		messengerClient.client = client
	}
}

// New returns a Client for the messaging daemon at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: messenger base URL is required", payments.ErrInvalidConfig)
	}
	messengerClient := &Client{
		client:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL: trimmed,
	}
	for _, option := range options {
		if option != nil {
			option(messengerClient)
		}
	}
	return messengerClient, nil
}

type sendTextRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

// SendText posts one text message to the recipient.
func (messengerClient *Client) SendText(ctx context.Context, recipientID string, body string) error {
	encoded, err := json.Marshal(sendTextRequest{RecipientID: recipientID, Body: body})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, messengerClient.baseURL+"/v1/messages", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := messengerClient.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: http %d", ErrDeliveryFailed, response.StatusCode)
	}
	return nil
}
