// Package stripe implements the payment.Provider contract against the
// Stripe HTTP API (payment links and refunds).
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eventgo-saga/internal/services/payment"
	"eventgo-saga/monitoring"
	"eventgo-saga/utils"
)

const DefaultAPIURL = "https://api.stripe.com"

type Config struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *utils.CircuitBreaker
}

func New(cfg *Config) *Client {
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: utils.NewCircuitBreaker("stripe"),
	}
}

// CreatePaymentLink creates a price for the requested amount and a hosted
// payment link for it, forwarding the saga metadata so it comes back on the
// checkout.session.completed webhook.
func (c *Client) CreatePaymentLink(ctx context.Context, req *payment.LinkRequest) (*payment.Link, error) {
	priceForm := url.Values{}
	priceForm.Set("unit_amount", strconv.FormatInt(req.AmountCents, 10))
	priceForm.Set("currency", req.Currency)
	priceForm.Set("product_data[name]", req.Description)

	var price struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "/v1/prices", priceForm, &price); err != nil {
		return nil, fmt.Errorf("create price: %w", err)
	}

	linkForm := url.Values{}
	linkForm.Set("line_items[0][price]", price.ID)
	linkForm.Set("line_items[0][quantity]", "1")
	for k, v := range req.Metadata {
		linkForm.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	if req.RedirectURL != "" {
		linkForm.Set("after_completion[type]", "redirect")
		linkForm.Set("after_completion[redirect][url]", req.RedirectURL)
	}

	var link struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.postForm(ctx, "/v1/payment_links", linkForm, &link); err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	return &payment.Link{
		LinkID:      link.ID,
		URL:         link.URL,
		AmountCents: req.AmountCents,
		ExpiresAt:   time.Now().Add(24 * time.Hour).Unix(),
	}, nil
}

// Refund refunds a payment intent, fully when amountCents is zero.
func (c *Client) Refund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) (*payment.RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	if amountCents > 0 {
		form.Set("amount", strconv.FormatInt(amountCents, 10))
	}
	if reason != "" {
		form.Set("reason", reason)
	}

	var result payment.RefundResult
	if err := c.postForm(ctx, "/v1/refunds", form, &result); err != nil {
		return nil, fmt.Errorf("refund %s: %w", paymentIntentID, err)
	}
	return &result, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	start := time.Now()
	defer func() {
		monitoring.ObserveProviderCall(path, time.Since(start).Seconds())
	}()

	_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			log.Printf("stripe: %s returned %d: %s", path, resp.StatusCode, body)
			return nil, fmt.Errorf("stripe %s: status %d", path, resp.StatusCode)
		}

		return nil, json.Unmarshal(body, out)
	})
	return err
}
