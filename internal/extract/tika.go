package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Tika sends the PDF to a Tika server and reads back plain text.
type Tika struct {
	url    string
	client *http.Client
}

// NewTika returns a backend for the server at baseURL.
func NewTika(baseURL string, client *http.Client) *Tika {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Tika{url: strings.TrimRight(baseURL, "/") + "/tika", client: client}
}

func (t *Tika) Name() string { return "tika" }

func (t *Tika) ExtractText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.url, f)
	if err != nil {
		return "", fmt.Errorf("build tika request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tika request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read tika response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika returned %s: %s", resp.Status, truncate(strings.TrimSpace(string(body)), 512))
	}
	return string(body), nil
}
