// Package events is a thin client for the events service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/events/%d", c.baseURL, eventID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get event %d: status %d", eventID, resp.StatusCode)
	}

	var event models.Event
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("get event %d: decode: %w", eventID, err)
	}
	return &event, nil
}

// MarkCancelled marks the event cancelled in the events service. This is the
// first step of the cancellation saga; ticket cancellation follows.
func (c *Client) MarkCancelled(ctx context.Context, eventID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, fmt.Sprintf("%s/events/%d/cancel", c.baseURL, eventID), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cancel event %d: %w", eventID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("event %d: %w", eventID, status.ErrAlreadyCancelled)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cancel event %d: status %d", eventID, resp.StatusCode)
	}
	return nil
}
