package classify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"syscall"
	"testing"

	"harness/internal/client"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectSource   Source
		expectCategory string
	}{
		{
			name:           "connection refused is NETWORK",
			err:            &url.Error{Op: "Post", URL: "http://localhost:8090/api/auth/login", Err: syscall.ECONNREFUSED},
			expectSource:   SourceNetwork,
			expectCategory: "connection_refused",
		},
		{
			name:           "deadline exceeded is NETWORK timeout",
			err:            fmt.Errorf("request failed: %w", context.DeadlineExceeded),
			expectSource:   SourceNetwork,
			expectCategory: "timeout",
		},
		{
			name:           "plain url.Error without response is NETWORK",
			err:            &url.Error{Op: "Get", URL: "http://localhost:8090/health", Err: errors.New("EOF")},
			expectSource:   SourceNetwork,
			expectCategory: "transport",
		},
		{
			name:           "500 status is SERVER",
			err:            &client.APIError{StatusCode: 500, Code: "api.internal", Message: "boom"},
			expectSource:   SourceServer,
			expectCategory: "http_5xx",
		},
		{
			name:           "db namespace code is SERVER even with 4xx status",
			err:            &client.APIError{StatusCode: 409, Code: "db.unique_constraint", Message: "duplicate"},
			expectSource:   SourceServer,
			expectCategory: "http_5xx",
		},
		{
			// Below 500 and outside the server error namespace there is
			// not enough signal to blame either side.
			name:           "404 outside server namespace degrades to UNKNOWN",
			err:            &client.APIError{StatusCode: 404, Code: "api.not_found", Message: "no such project"},
			expectSource:   SourceUnknown,
			expectCategory: "http_4xx",
		},
		{
			name:           "client validation is SDK",
			err:            &client.ValidationError{Field: "name", Reason: "empty"},
			expectSource:   SourceSDK,
			expectCategory: "client_validation",
		},
		{
			name:           "arbitrary error is UNKNOWN",
			err:            errors.New("assertion mismatch"),
			expectSource:   SourceUnknown,
			expectCategory: "unclassified",
		},
		{
			name:           "wrapped APIError is still SERVER",
			err:            fmt.Errorf("creating document: %w", &client.APIError{StatusCode: 503, Code: "api.unavailable"}),
			expectSource:   SourceServer,
			expectCategory: "http_5xx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.expectSource, got.Source)
			assert.Equal(t, tt.expectCategory, got.Category)
			assert.NotEmpty(t, got.FixLocation)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	got := Classify(nil)
	assert.Equal(t, SourceUnknown, got.Source)
}
