package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/toyfleet/fleet-tracker/internal/phone"
)

const DefaultBatchAPIURL = "https://us.sms.api.sinch.com/xms/v1"

// Batch sends through a Sinch-style batch API: Bearer-authorized POST
// to a service-plan-scoped endpoint, 200 or 201 on acceptance.
type Batch struct {
	planID     string
	apiToken   string
	fromNumber string
	baseURL    string
	client     *http.Client
}

func NewBatch(planID, apiToken, fromNumber, baseURL string) *Batch {
	if baseURL == "" {
		baseURL = DefaultBatchAPIURL
	}
	return &Batch{
		planID:     planID,
		apiToken:   apiToken,
		fromNumber: fromNumber,
		baseURL:    baseURL,
		client:     newHTTPClient(),
	}
}

func (g *Batch) Name() string { return "batch" }

func (g *Batch) Available() bool { return g.planID != "" && g.apiToken != "" }

func (g *Batch) Send(ctx context.Context, to, body string) Result {
	payload, err := json.Marshal(map[string]any{
		"from": g.fromNumber,
		"to":   []string{phone.Digits(to)},
		"body": body,
	})
	if err != nil {
		return failure(g.Name(), to, ReasonHTTPError, err.Error())
	}

	url := fmt.Sprintf("%s/%s/batches", g.baseURL, g.planID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+g.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpFailure(g.Name(), to, resp.StatusCode, string(raw))
	}

	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &created)

	return success(g.Name(), to, created.ID)
}
