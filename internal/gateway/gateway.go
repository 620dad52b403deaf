// Package gateway holds the SMS transport backends. Each backend knows
// one way of getting a text message out (cloud API, paid provider,
// local relay app, GSM modem, tethered phone) and reports whether it is
// usable at all; the dispatcher walks them in priority order.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Backend is one SMS transport.
type Backend interface {
	// Name identifies the transport in results, logs and status output.
	Name() string
	// Available reports whether the backend is configured/reachable.
	// Detection happens at construction; Available must be cheap.
	Available() bool
	// Send delivers body to the number in +E.164 form. It never returns
	// an error: every outcome is folded into the Result so the chain
	// can decide whether to continue.
	Send(ctx context.Context, to, body string) Result
}

// Result is the outcome of one send attempt on one backend.
type Result struct {
	Success     bool
	Method      string
	To          string
	ProviderRef string

	// Failure details.
	Reason  string
	Message string

	// FatalToFleet marks a provider-side quota/limit exhaustion. It
	// tells the dispatcher to stop the chain and the scheduler to halt
	// all automatic sending until an operator restarts it.
	FatalToFleet bool
}

const (
	ReasonNoSim       = "no_sim_configured"
	ReasonUnavailable = "gateway_unavailable"
	ReasonHTTPError   = "http_error"
	ReasonConnError   = "connection_error"
	ReasonModemError  = "modem_error"
	ReasonQuota       = "quota_exhausted"
)

func success(method, to, ref string) Result {
	return Result{Success: true, Method: method, To: to, ProviderRef: ref}
}

func failure(method, to, reason, msg string) Result {
	return Result{Method: method, To: to, Reason: reason, Message: msg}
}

// quotaSignatures are provider error phrasings that mean the daily or
// monthly allowance is gone, not that this one message failed.
var quotaSignatures = []string{
	"daily limit",
	"monthly limit",
	"quota",
	"exceeded",
	"limit reached",
}

// quotaExhausted detects fleet-fatal provider responses: HTTP 429 or a
// limit signature anywhere in the body.
func quotaExhausted(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(body)
	for _, sig := range quotaSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// httpFailure classifies a non-success HTTP response, promoting quota
// exhaustion to a fleet-fatal result.
func httpFailure(method, to string, status int, body string) Result {
	res := failure(method, to, ReasonHTTPError, truncate(body, 200))
	if quotaExhausted(status, body) {
		res.Reason = ReasonQuota
		res.FatalToFleet = true
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// newHTTPClient gives every HTTP backend the same bounded timeout so a
// dead relay cannot stall a scheduler tick.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
