package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/toyfleet/fleet-tracker/internal/phone"
)

const DefaultCloudAPIURL = "https://api.smsmobileapi.com/sendsms/"

// CloudAPI sends through an SMSMobileAPI-style cloud relay: a GET with
// the API key, recipient and message as query parameters. The relay
// answers 200 even for refused sends and reports the real outcome in a
// nested error code, so both layers are checked.
type CloudAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewCloudAPI(apiKey, baseURL string) *CloudAPI {
	if baseURL == "" {
		baseURL = DefaultCloudAPIURL
	}
	return &CloudAPI{apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

func (g *CloudAPI) Name() string { return "cloudapi" }

func (g *CloudAPI) Available() bool { return g.apiKey != "" }

type cloudAPIResponse struct {
	Result struct {
		Error     json.Number `json:"error"`
		ErrorText string      `json:"error-text"`
	} `json:"result"`
}

func (g *CloudAPI) Send(ctx context.Context, to, body string) Result {
	q := url.Values{}
	q.Set("recipients", phone.Digits(to))
	q.Set("message", body)
	q.Set("apikey", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return failure(g.Name(), to, ReasonConnError, err.Error())
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

	var cr cloudAPIResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return failure(g.Name(), to, ReasonHTTPError, fmt.Sprintf("bad response json: %v", err))
	}

	if cr.Result.Error.String() != "0" {
		msg := fmt.Sprintf("provider error %s: %s", cr.Result.Error.String(), cr.Result.ErrorText)
		res := failure(g.Name(), to, ReasonHTTPError, msg)
		if quotaExhausted(resp.StatusCode, cr.Result.ErrorText) {
			res.Reason = ReasonQuota
			res.FatalToFleet = true
		}
		return res
	}

	return success(g.Name(), to, "")
}
