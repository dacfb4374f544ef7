package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pbx-console/internal/livecalls"
)

// Client talks to the switch's control endpoint: one GET for the active-calls
// snapshot, POSTs for hangup and blind transfer.
//
// The endpoint is eventually consistent and occasionally flaky; the client
// owns the request timeout and the short-TTL response cache, while retry
// policy belongs to the poller.
type Client struct {
	baseURL   string
	apiKey    string
	adminPass string

	httpc   *http.Client
	timeout time.Duration
	cache   SnapshotCache
	log     *slog.Logger
}

type Options struct {
	BaseURL   string
	APIKey    string
	AdminPass string

	// Timeout is the per-request ceiling. Defaults to 8s.
	Timeout time.Duration

	// Cache is optional; without it every fetch goes to the network.
	Cache SnapshotCache

	Logger *slog.Logger

	// HTTPClient is injectable for tests; defaults to a plain http.Client.
	HTTPClient *http.Client
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("telephony: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		adminPass: opts.AdminPass,
		httpc:     httpc,
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		log:       opts.Logger,
	}, nil
}

// rawCall is the provider's wire shape for one active leg.
type rawCall struct {
	Accountcode string `json:"Accountcode"`
	Application string `json:"Application"`
	BridgeID    string `json:"BridgeID"`
	CallerID    string `json:"CallerID"`
	Channel     string `json:"Channel"`
	Context     string `json:"Context"`
	Data        string `json:"Data"`
	Duration    string `json:"Duration"`
	Extension   string `json:"Extension"`
	PeerAccount string `json:"PeerAccount"`
	Prio        string `json:"Prio"`
	State       string `json:"State"`
}

// FetchActiveCalls returns the current unfiltered leg list.
//
// A cached result younger than the cache TTL is returned without a network
// call. Any error invalidates the cache so the next call always goes to the
// network. A provider 404 means "no active calls" and resolves to an empty
// list, not an error.
func (c *Client) FetchActiveCalls(ctx context.Context) ([]livecalls.Leg, error) {
	if c.cache != nil {
		if legs, ok, err := c.cache.Get(ctx); err == nil && ok {
			return legs, nil
		}
	}

	legs, err := c.fetchFromNetwork(ctx)
	if err != nil {
		if c.cache != nil && !IsCanceled(err) {
			_ = c.cache.Invalidate(context.WithoutCancel(ctx))
		}
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, legs)
	}
	return legs, nil
}

func (c *Client) fetchFromNetwork(ctx context.Context) ([]livecalls.Leg, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/active-calls"
	if c.adminPass != "" {
		u += "?adminpass=" + url.QueryEscape(c.adminPass)
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The switch reports "no active calls" as 404.
		return []livecalls.Leg{}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("telephony: active-calls returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	raws, err := decodeActiveCalls(body)
	if err != nil {
		return nil, err
	}

	legs := make([]livecalls.Leg, 0, len(raws))
	for _, r := range raws {
		legs = append(legs, toLeg(r))
	}
	return legs, nil
}

// decodeActiveCalls accepts both response shapes the endpoint is known to
// produce: a bare array, or an object wrapping it in "active_calls".
func decodeActiveCalls(body []byte) ([]rawCall, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	var raws []rawCall
	if err := json.Unmarshal(body, &raws); err == nil {
		return raws, nil
	}

	var wrapped struct {
		ActiveCalls []rawCall `json:"active_calls"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("telephony: unexpected active-calls payload: %w", err)
	}
	return wrapped.ActiveCalls, nil
}

func toLeg(r rawCall) livecalls.Leg {
	dur, err := strconv.Atoi(strings.TrimSpace(r.Duration))
	if err != nil || dur < 0 {
		dur = 0
	}
	ext, _ := livecalls.ParseExtension(r.Channel)
	return livecalls.Leg{
		Channel:         r.Channel,
		CallerID:        r.CallerID,
		Destination:     r.Extension,
		State:           livecalls.MapState(r.State),
		DurationSeconds: dur,
		AccountCode:     r.Accountcode,
		Extension:       ext,
	}
}

// classify separates cancellation, timeout and plain connectivity failures.
// The parent context decides: if the caller canceled, the error is a
// cancellation no matter what the transport reported.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("telephony: request canceled: %w", context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	return fmt.Errorf("telephony: request failed: %w", err)
}
