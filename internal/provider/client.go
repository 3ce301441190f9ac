package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the telephony provider's REST API. The provider is an
// opaque remote service; this client only covers the calls the metering
// core needs: SMS dispatch and campaign/session control.
type Client interface {
	// SendMessage dispatches one SMS and reports the provider message id and
	// how many segments the provider actually transmitted.
	SendMessage(ctx context.Context, source, destination, text string) (*MessageReceipt, error)
	// StopCampaign tells the provider to stop processing an outbound list.
	StopCampaign(ctx context.Context, listID string) error
	// TerminateSession hangs up a single in-flight call session.
	TerminateSession(ctx context.Context, sessionID string) error
	// FindActiveSessions returns provider call sessions involving the number
	// that are not yet finished and started after since.
	FindActiveSessions(ctx context.Context, number string, since time.Time) ([]Session, error)
	// FindActiveCampaigns returns provider-side outbound lists for the number
	// created after since.
	FindActiveCampaigns(ctx context.Context, number string, since time.Time) ([]CampaignRef, error)
}

// MessageReceipt is the provider's acknowledgement of one SMS.
type MessageReceipt struct {
	MessageID string `json:"message_id"`
	Segments  int64  `json:"segments"`
}

// Session is an in-flight call session on the provider.
type Session struct {
	ID       string     `json:"id"`
	Number   string     `json:"number"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
}

// CampaignRef is a provider-side outbound list.
type CampaignRef struct {
	ListID  string    `json:"list_id"`
	Number  string    `json:"number"`
	Created time.Time `json:"created"`
}

// Config holds provider client configuration.
type Config struct {
	BaseURL string
	Token   string        // Bearer token
	Timeout time.Duration // per-request timeout (default: 10s)
}

type httpClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a provider client with connection pooling defaults.
func NewClient(cfg Config, logger zerolog.Logger) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With().Str("component", "provider_client").Logger(),
	}
}

func (c *httpClient) SendMessage(ctx context.Context, source, destination, text string) (*MessageReceipt, error) {
	body := map[string]string{
		"source":      source,
		"destination": destination,
		"text":        text,
	}
	var receipt MessageReceipt
	if err := c.do(ctx, http.MethodPost, "/v1/messages", body, &receipt); err != nil {
		return nil, fmt.Errorf("send message to %s: %w", destination, err)
	}
	return &receipt, nil
}

func (c *httpClient) StopCampaign(ctx context.Context, listID string) error {
	path := "/v1/lists/" + url.PathEscape(listID) + "/stop"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("stop campaign list %s: %w", listID, err)
	}
	return nil
}

func (c *httpClient) TerminateSession(ctx context.Context, sessionID string) error {
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/terminate"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("terminate session %s: %w", sessionID, err)
	}
	return nil
}

func (c *httpClient) FindActiveSessions(ctx context.Context, number string, since time.Time) ([]Session, error) {
	q := url.Values{}
	q.Set("number", number)
	q.Set("since", strconv.FormatInt(since.Unix(), 10))
	q.Set("finished", "false")

	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("find active sessions for %s: %w", number, err)
	}
	return out.Sessions, nil
}

func (c *httpClient) FindActiveCampaigns(ctx context.Context, number string, since time.Time) ([]CampaignRef, error) {
	q := url.Values{}
	q.Set("number", number)
	q.Set("since", strconv.FormatInt(since.Unix(), 10))
	q.Set("status", "active")

	var out struct {
		Lists []CampaignRef `json:"lists"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/lists?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("find active campaigns for %s: %w", number, err)
	}
	return out.Lists, nil
}

// do performs one JSON request/response round trip against the provider.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("Provider returned non-2xx response")
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
