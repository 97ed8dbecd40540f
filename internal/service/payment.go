package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PaymentSessions is the narrow boundary to the external payment provider.
// The core only ever asks for an opaque session URL; the provider calls
// back later through the confirm/cancel webhooks.  Amount validation is the
// provider's concern, not ours.
type PaymentSessions interface {
	CreateSession(ctx context.Context, bookingID string, amountCents uint64) (string, error)
}

// HTTPPaymentClient requests payment sessions from the provider over HTTP.
type HTTPPaymentClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPaymentClient returns a client for the provider at baseURL.
func NewHTTPPaymentClient(baseURL string) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession opens a payment session for the booking and returns the URL
// the renter must visit to pay.
func (p *HTTPPaymentClient) CreateSession(ctx context.Context, bookingID string, amountCents uint64) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"booking_id":   bookingID,
		"amount_cents": amountCents,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("payment provider: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("payment provider: decode response: %w", err)
	}
	if body.URL == "" {
		return "", fmt.Errorf("payment provider: empty session url")
	}
	return body.URL, nil
}
