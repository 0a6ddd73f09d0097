package conversation

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// DocumentRef points at one of the patient's uploaded documents. TextURL is
// only meaningful when HasText is set.
type DocumentRef struct {
	ID      uuid.UUID
	TextURL string
	HasText bool
}

// DocumentSource lists a patient's documents so their text can be offered to
// the assistant as context.
type DocumentSource interface {
	ListUserDocuments(ctx context.Context, userID uuid.UUID) ([]DocumentRef, error)
}

// TextFetcher retrieves the extracted text behind a document's text URL.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// HTTPTextFetcher fetches document text over plain HTTP GET. Per-fetch
// deadlines come from the caller's context.
type HTTPTextFetcher struct {
	client *http.Client
}

func NewHTTPTextFetcher(client *http.Client) *HTTPTextFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTextFetcher{client: client}
}

func (f *HTTPTextFetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build text request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch text: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read text body: %w", err)
	}
	return string(body), nil
}
