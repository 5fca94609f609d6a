package classify

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"harness/internal/client"
)

// Source names the layer a failure most likely originates from. It is
// advisory routing information for a human triaging a failed run, never an
// input to control flow.
type Source string

const (
	// SourceNetwork: the request never produced an HTTP response.
	SourceNetwork Source = "NETWORK"
	// SourceServer: the system under test answered with a server-side error.
	SourceServer Source = "SERVER"
	// SourceSDK: the client library rejected the call before any request left
	// the process.
	SourceSDK Source = "SDK"
	// SourceUnknown: none of the heuristics matched.
	SourceUnknown Source = "UNKNOWN"
)

// Classification is the triage verdict for one failure.
type Classification struct {
	Source      Source `json:"source"`
	Category    string `json:"category"`
	FixLocation string `json:"fixLocation"`
}

// Classify inspects a test failure and assigns it a source, a category and
// a suggested place to look. The heuristics run in priority order and
// degrade to UNKNOWN rather than guess.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Source: SourceUnknown, Category: "no_error", FixLocation: "test body"}
	}

	// 1. No HTTP response at all: connection refused, reset, timeouts.
	if cat, ok := networkCategory(err); ok {
		return Classification{
			Source:      SourceNetwork,
			Category:    cat,
			FixLocation: "service availability / environment",
		}
	}

	// 2. The server answered with an error.
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 || strings.HasPrefix(apiErr.Code, "db.") {
			return Classification{
				Source:      SourceServer,
				Category:    "http_5xx",
				FixLocation: "backend request handlers",
			}
		}
		// A 4xx outside the server's error namespace usually means the
		// test asked for something wrong, but it could equally be a
		// broken handler. Not enough signal to point anywhere.
		return Classification{
			Source:      SourceUnknown,
			Category:    "http_4xx",
			FixLocation: "test expectations vs API contract",
		}
	}

	// 3. The client library refused before sending anything.
	var valErr *client.ValidationError
	if errors.As(err, &valErr) {
		return Classification{
			Source:      SourceSDK,
			Category:    "client_validation",
			FixLocation: "internal/client call site",
		}
	}

	return Classification{Source: SourceUnknown, Category: "unclassified", FixLocation: "test body"}
}

// networkCategory reports whether err looks like a transport-level failure,
// and which kind.
func networkCategory(err error) (string, bool) {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection_refused", true
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return "connection_reset", true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout", true
	}

	// url.Error wraps every transport failure from net/http; an APIError is
	// never wrapped in one, so reaching here means no response arrived.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "transport", true
	}

	return "", false
}
