// Package calendar integrates appointment bookings with an external calendar
// service. Sync is best effort: the appointment domain logs failures and
// proceeds, so this client never blocks a booking.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event is the payload pushed to the external calendar.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Attendee    string    `json:"attendee,omitempty"`
}

// Client pushes appointment events to an external calendar.
type Client interface {
	CreateEvent(ctx context.Context, event Event) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// HTTPClient is a Client backed by a JSON-over-HTTP calendar API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateEvent posts the event and returns the remote event ID.
func (c *HTTPClient) CreateEvent(ctx context.Context, event Event) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create calendar event: unexpected status %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}
	return created.ID, nil
}

// DeleteEvent removes a previously created event. A 404 is treated as success
// since the desired state is reached either way.
func (c *HTTPClient) DeleteEvent(ctx context.Context, eventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/events/"+eventID, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete calendar event: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NopClient is used when no calendar service is configured.
type NopClient struct{}

func (NopClient) CreateEvent(context.Context, Event) (string, error) { return "", nil }
func (NopClient) DeleteEvent(context.Context, string) error         { return nil }
