package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inferd/pkg/types"
)

// client wraps HTTP access to one inferd daemon. JSON calls go through hc
// with the configured timeout; streaming uses a bare client because
// http.Client.Timeout covers the whole body read and would cut
// generations short.
type client struct {
	base   string
	hc     *http.Client
	stream *http.Client
}

func newClient(cfg *Config) *client {
	return &client{
		base:   strings.TrimRight(cfg.Host, "/"),
		hc:     &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{},
	}
}

// apiError turns a non-2xx response body into an error, preferring the
// daemon's structured envelope over the raw payload.
func apiError(status string, body []byte) error {
	var e types.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return fmt.Errorf("%s (%s)", e.Error.Message, e.Error.Code)
	}
	return fmt.Errorf("%s: %s", status, strings.TrimSpace(string(body)))
}

func (c *client) do(req *http.Request, v any) error {
	debug("%s %s", req.Method, req.URL)
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.Status, body)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func (c *client) postJSON(ctx context.Context, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

// ready probes /readyz without treating 503 as a transport failure.
func (c *client) ready(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/readyz", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return false, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func callCtx(cfg *Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout > 0 {
		return context.WithTimeout(context.Background(), cfg.Timeout)
	}
	return context.WithCancel(context.Background())
}

// fmtDuration trims a duration for human output.
func fmtDuration(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}
