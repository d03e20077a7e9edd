package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dendrascience/transfs/store"
)

// StatusError is a non-2xx reply from the control interface.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("control server returned %d: %s", e.Code, e.Message)
}

// Is lets a 404 match store.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return e.Code == http.StatusNotFound && target == store.ErrNotFound
}

// Client talks to a running control interface.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for addr, either a URL or host:port.
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		BaseURL: strings.TrimRight(addr, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Add maps original to translated.
func (c *Client) Add(ctx context.Context, original, translated string) error {
	body := map[string]string{"original": original, "translated": translated}
	return c.do(ctx, http.MethodPost, "/add_translation", body, nil)
}

// Remove deletes the mapping for original. A missing mapping yields an error
// matching store.ErrNotFound.
func (c *Client) Remove(ctx context.Context, original string) error {
	return c.do(ctx, http.MethodPost, "/remove_translation", map[string]string{"original": original}, nil)
}

// List returns every mapping.
func (c *Client) List(ctx context.Context) ([]store.Entry, error) {
	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, "/list_translations", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]store.Entry, 0, len(resp.Translations))
	for _, p := range resp.Translations {
		out = append(out, store.Entry{Original: p[0], Translated: p[1]})
	}
	return out, nil
}

// Lookup returns the translated path for original.
func (c *Client) Lookup(ctx context.Context, original string) (string, error) {
	var resp LookupResponse
	q := url.Values{"original": {original}}
	if err := c.do(ctx, http.MethodGet, "/translation?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}
	return resp.Translated, nil
}

// Originals returns the original paths mapped to translated.
func (c *Client) Originals(ctx context.Context, translated string) ([]string, error) {
	var resp ReverseResponse
	q := url.Values{"translated": {translated}}
	if err := c.do(ctx, http.MethodGet, "/reverse_translation?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Originals, nil
}

// Backup asks the server for a snapshot and returns its path.
func (c *Client) Backup(ctx context.Context) (string, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, "/backup", nil, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("control server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var st StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil || st.Message == "" {
			st.Message = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: st.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
