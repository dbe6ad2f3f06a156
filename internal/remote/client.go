// Package remote implements the registration gateway against an external
// HTTP registration service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"checkin-desk-backend/config"
	"checkin-desk-backend/internal/gateway"
)

const defaultTimeout = 30 * time.Second

var errNoData = errors.New("response has no data")

// Client talks JSON over HTTP to the registration service.
type Client struct {
	baseURL string
	headers map[string]string
	client  *http.Client
	log     zerolog.Logger
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient creates a client for cfg.URL. An invalid proxy is logged and
// ignored.
func NewClient(cfg config.RemoteConfig, log zerolog.Logger) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cfg.HTTPProxy).Msg("invalid proxy URL, registration client will not use a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		log: log,
	}
}

func (c *Client) LookupByCode(ctx context.Context, req gateway.LookupRequest) (*gateway.CheckinResult, error) {
	var res gateway.CheckinResult
	if err := c.post(ctx, "/lookup", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CommitCheckIn(ctx context.Context, req gateway.RegistrationRequest) (*gateway.CheckinResult, error) {
	var res gateway.CheckinResult
	if err := c.post(ctx, "/commit", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UndoCheckIn(ctx context.Context, req gateway.RegistrationRequest) (*gateway.UndoResult, error) {
	var res gateway.UndoResult
	if err := c.post(ctx, "/undo", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SearchRegistrations(ctx context.Context, req gateway.SearchRequest) ([]gateway.SearchResult, error) {
	var res []gateway.SearchResult
	if err := c.post(ctx, "/search", req, &res); err != nil && !errors.Is(err, errNoData) {
		return nil, err
	}
	return res, nil
}

func (c *Client) ListInstancesByDate(ctx context.Context, date string) ([]gateway.InstanceOption, error) {
	var res []gateway.InstanceOption
	if err := c.post(ctx, "/instances", gateway.InstancesRequest{Date: date}, &res); err != nil && !errors.Is(err, errNoData) {
		return nil, err
	}
	return res, nil
}

func (c *Client) CountAttended(ctx context.Context, instanceID, checkinStatus string) (int, error) {
	var res countData
	if err := c.post(ctx, "/count", gateway.CountRequest{InstanceID: instanceID, CheckinStatus: checkinStatus}, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// post sends payload to path and decodes the envelope's data into out.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request failed: %w", path, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("registration service call")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: received non-200 status code: %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response body: %w", path, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("%s: failed to unmarshal api response: %w", path, err)
	}
	if apiResp.Code != 0 {
		return &APIError{Path: path, Code: apiResp.Code, Message: apiResp.Message}
	}
	if len(apiResp.Data) == 0 || string(apiResp.Data) == "null" {
		return fmt.Errorf("%s: %w", path, errNoData)
	}
	if err := json.Unmarshal(apiResp.Data, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal data: %w", path, err)
	}
	return nil
}
