package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"pbx-console/internal/livecalls"
)

// Control commands. These are NOT idempotent-safe to retry blindly: a hangup
// retried against an already-hung-up channel legitimately reports "no active
// channel" and must not be treated as a fresh failure. No retry happens here;
// outcomes go straight back to the operator.
//
// The caller is responsible for triggering a re-poll after a successful
// command so the call list reflects the change within one polling interval.

// managerMsgQuirk is the exact error string the switch's response library
// emits when it fails to serialize an otherwise successful action. It must be
// matched verbatim: anything broader would mask real failures.
const managerMsgQuirk = "'ManagerMsg' object has no attribute 'keys'"

var noActiveChannelPattern = regexp.MustCompile(`[Nn]o active channel found for extension (\S+)`)

type commandResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Hangup terminates one call leg. HTTP 2xx is success; no response payload is
// required.
func (c *Client) Hangup(ctx context.Context, channel string) error {
	if channel == "" {
		return fmt.Errorf("telephony: channel is required")
	}
	body := map[string]string{"channel": channel}
	return c.postCommand(ctx, "/hangup-call", body)
}

// Transfer blind-transfers the leg operated by channel's extension to
// destination. The wire contract addresses the extension, which is parsed out
// of the channel identifier.
func (c *Client) Transfer(ctx context.Context, channel, destination string) error {
	if channel == "" || destination == "" {
		return fmt.Errorf("telephony: channel and destination are required")
	}
	ext, ok := livecalls.ParseExtension(channel)
	if !ok {
		return fmt.Errorf("telephony: cannot derive extension from channel %q", channel)
	}
	body := map[string]string{
		"extension":   ext,
		"destination": destination,
		"type":        "blind",
	}
	return c.postCommand(ctx, "/transfer", body)
}

func (c *Client) postCommand(ctx context.Context, path string, payload any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.classify(ctx, err)
	}

	if err := classifyCommandBody(body); err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telephony: %s returned status %d", path, resp.StatusCode)
	}

	// A successful command changes the very state the snapshot caches, so the
	// next fetch must go to the network.
	if c.cache != nil {
		_ = c.cache.Invalidate(context.WithoutCancel(ctx))
	}
	return nil
}

// classifyCommandBody interprets the provider's application-level outcome.
// Returns nil when the body reports success, is empty, or carries the known
// serialization quirk; a semantic error otherwise.
func classifyCommandBody(body []byte) error {
	var cr commandResponse
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, &cr); err != nil {
		// Non-JSON bodies on 2xx are tolerated; the status line decides.
		return nil
	}

	errText := cr.Error
	if errText == "" {
		errText = cr.Message
	}

	if m := noActiveChannelPattern.FindStringSubmatch(errText); m != nil {
		return &NoActiveChannelError{Extension: m[1]}
	}

	if cr.Success != nil && !*cr.Success {
		if errText == managerMsgQuirk {
			// The action succeeded; only the provider's response serialization
			// failed. Treated as success by contract.
			return nil
		}
		if errText == "" {
			errText = "command failed"
		}
		return fmt.Errorf("telephony: %s", errText)
	}
	return nil
}
