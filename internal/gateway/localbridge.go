package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/toyfleet/fleet-tracker/internal/phone"
)

// LocalBridge sends through an SMS gateway app running on a phone on
// the local network. These apps do not agree on a request shape:
//
//   - Traccar SMS Gateway: POST <base>/api/sms/send with an optional
//     X-Traccar-Token header. Picked when the base URL names traccar
//     or a token is configured.
//   - Simple SMS Gateway: POST <base>/send-sms with {"phone","message"}.
//     Tried first for everything else.
//   - Anything else: a small cross-product of known paths and field
//     names, tried only when the simple format is rejected outright.
type LocalBridge struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewLocalBridge(baseURL, token string) *LocalBridge {
	return &LocalBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  newHTTPClient(),
	}
}

func (g *LocalBridge) Name() string { return "local_bridge" }

func (g *LocalBridge) Available() bool { return g.baseURL != "" }

var (
	fallbackPaths  = []string{"/send", "/api/send", "/sms/send"}
	fallbackFields = []string{"phone", "number", "to"}
)

func (g *LocalBridge) Send(ctx context.Context, to, body string) Result {
	digits := phone.Digits(to)

	if g.isTraccar() {
		return g.sendTraccar(ctx, to, digits, body)
	}

	// Simple SMS Gateway format first.
	url := g.baseURL
	if !strings.Contains(url, "/send-sms") {
		url += "/send-sms"
	}
	status, err := g.post(ctx, url, map[string]string{"phone": digits, "message": body})
	if err == nil && status == http.StatusOK {
		return success(g.Name(), to, "")
	}
	if err == nil && status != http.StatusNotFound && status != http.StatusMethodNotAllowed {
		return httpFailure(g.Name(), to, status, fmt.Sprintf("simple gateway HTTP %d", status))
	}

	// Unknown app: probe the known path/field combinations.
	var lastErr string
	if err != nil {
		lastErr = err.Error()
	} else {
		lastErr = fmt.Sprintf("HTTP %d", status)
	}
	for _, path := range fallbackPaths {
		for _, field := range fallbackFields {
			status, err := g.post(ctx, g.baseURL+path, map[string]string{field: digits, "message": body})
			if err != nil {
				lastErr = err.Error()
				continue
			}
			if status == http.StatusOK {
				return success(g.Name(), to, "")
			}
			lastErr = fmt.Sprintf("HTTP %d on %s", status, path)
		}
	}

	return failure(g.Name(), to, ReasonConnError, "no gateway format accepted the message: "+lastErr)
}

func (g *LocalBridge) isTraccar() bool {
	return strings.Contains(strings.ToLower(g.baseURL), "traccar") || g.token != ""
}

func (g *LocalBridge) sendTraccar(ctx context.Context, to, digits, body string) Result {
	url := g.baseURL + "/api/sms/send"
	req, err := newJSONRequest(ctx, url, map[string]string{"phone": digits, "message": body})
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
	}
	if g.token != "" {
		req.Header.Set("X-Traccar-Token", g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return httpFailure(g.Name(), to, resp.StatusCode, string(raw))
	}
	return success(g.Name(), to, "")
}

func (g *LocalBridge) post(ctx context.Context, url string, payload map[string]string) (int, error) {
	req, err := newJSONRequest(ctx, url, payload)
	if err != nil {
		return 0, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func newJSONRequest(ctx context.Context, url string, payload map[string]string) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
