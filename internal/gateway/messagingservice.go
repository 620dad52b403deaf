package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const DefaultMessagingServiceURL = "https://rest.messagebird.com"

// MessagingService sends through a MessageBird-style paid REST API:
// JSON POST with an AccessKey authorization header, 201 on acceptance.
type MessagingService struct {
	accessKey  string
	originator string
	baseURL    string
	client     *http.Client
}

func NewMessagingService(accessKey, originator, baseURL string) *MessagingService {
	if originator == "" {
		originator = "MessageBird"
	}
	if baseURL == "" {
		baseURL = DefaultMessagingServiceURL
	}
	return &MessagingService{
		accessKey:  accessKey,
		originator: originator,
		baseURL:    baseURL,
		client:     newHTTPClient(),
	}
}

func (g *MessagingService) Name() string { return "messaging_service" }

func (g *MessagingService) Available() bool { return g.accessKey != "" }

type messagingServiceError struct {
	Errors []struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (g *MessagingService) Send(ctx context.Context, to, body string) Result {
	payload, err := json.Marshal(map[string]any{
		"originator": g.originator,
		"recipients": []string{to},
		"body":       body,
	})
	if err != nil {
		return failure(g.Name(), to, ReasonHTTPError, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
	}
	req.Header.Set("Authorization", "AccessKey "+g.accessKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		// Prefer the provider's structured description when present.
		var me messagingServiceError
		if json.Unmarshal(raw, &me) == nil && len(me.Errors) > 0 {
			msg := fmt.Sprintf("code %d: %s", me.Errors[0].Code, me.Errors[0].Description)
			return httpFailure(g.Name(), to, resp.StatusCode, msg)
		}
		return httpFailure(g.Name(), to, resp.StatusCode, string(raw))
	}

	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &created)

	return success(g.Name(), to, created.ID)
}
