package syncapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCall() Call {
	return Call{
		Path: "/internal/sync/settlements",
		Payload: Payload{
			AccountID:  "acct-1",
			MerchantID: "m-1",
			From:       "2024-03-14",
			To:         "2024-03-14",
		},
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(ClientOptions{BaseURL: "  "})
	assert.Error(t, err)
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	c, err := NewClient(ClientOptions{BaseURL: "http://sync.internal/"})
	require.NoError(t, err)
	assert.Equal(t, "http://sync.internal", c.baseURL)
}

func TestInvokeSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotPayload Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c, err := NewClient(ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	require.NoError(t, c.Invoke(context.Background(), testCall()))
	assert.Equal(t, "/internal/sync/settlements", gotPath)
	assert.Equal(t, "acct-1", gotPayload.AccountID)
	assert.Equal(t, "2024-03-14", gotPayload.From)
}

func TestInvokeClientErrorIsNotRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unknown merchant"}`))
	}))
	defer server.Close()

	c, err := NewClient(ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	invokeErr := c.Invoke(context.Background(), testCall())
	require.Error(t, invokeErr)

	var statusErr *StatusError
	require.ErrorAs(t, invokeErr, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.Code)
	assert.Contains(t, statusErr.Body, "unknown merchant")
	assert.False(t, statusErr.Retryable())
	assert.False(t, IsRetryable(invokeErr))
}

func TestInvokeServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := NewClient(ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	invokeErr := c.Invoke(context.Background(), testCall())
	require.Error(t, invokeErr)

	var statusErr *StatusError
	require.ErrorAs(t, invokeErr, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.True(t, IsRetryable(invokeErr))
}

func TestInvokeTransportErrorIsRetryable(t *testing.T) {
	t.Parallel()

	// Nothing listens here; the dial fails.
	c, err := NewClient(ClientOptions{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	invokeErr := c.Invoke(context.Background(), testCall())
	require.Error(t, invokeErr)
	assert.True(t, IsRetryable(invokeErr))
}

func TestInvokeTruncatesLargeErrorBodies(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", 3*maxResponseBodyBytes)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(big))
	}))
	defer server.Close()

	c, err := NewClient(ClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	invokeErr := c.Invoke(context.Background(), testCall())
	var statusErr *StatusError
	require.ErrorAs(t, invokeErr, &statusErr)
	assert.LessOrEqual(t, len(statusErr.Body), maxResponseBodyBytes+len("...(truncated)"))
	assert.True(t, strings.HasSuffix(statusErr.Body, "...(truncated)"))
}

func TestInvokeRejectsRelativePath(t *testing.T) {
	t.Parallel()

	c, err := NewClient(ClientOptions{BaseURL: "http://sync.internal"})
	require.NoError(t, err)

	invokeErr := c.Invoke(context.Background(), Call{Path: "internal/sync/sales"})
	assert.Error(t, invokeErr)
}

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sync action returned status 503",
		(&StatusError{Code: 503}).Error())
	assert.Equal(t, "sync action returned status 503: overloaded",
		(&StatusError{Code: 503, Body: "overloaded"}).Error())
}
