package plaid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("sandbox", "client-id", "secret", 5*time.Second, WithBaseURL(server.URL))
}

func TestExchangePublicToken_Success(t *testing.T) {
	var gotBody map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, exchangePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "access-sandbox-1",
			"item_id":      "item_1",
			"request_id":   "req_1",
		})
	})

	result, err := client.ExchangePublicToken(context.Background(), "public-sandbox-1")

	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-1", result.AccessToken)
	assert.Equal(t, "item_1", result.ItemID)
	assert.Equal(t, "public-sandbox-1", gotBody["public_token"])
	assert.Equal(t, "client-id", gotBody["client_id"])
	assert.Equal(t, "secret", gotBody["secret"])
}

func TestExchangePublicToken_InvalidToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error_type":    "INVALID_INPUT",
			"error_code":    "INVALID_PUBLIC_TOKEN",
			"error_message": "provided public token is invalid",
		})
	})

	_, err := client.ExchangePublicToken(context.Background(), "public-sandbox-bad")

	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
	assert.False(t, IsUnavailable(err))

	var exchErr *TokenExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, "INVALID_PUBLIC_TOKEN", exchErr.Code)
}

func TestExchangePublicToken_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ExchangePublicToken(context.Background(), "public-sandbox-1")

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

// Plaid reports rate limiting as a 429 with an error body; that is a
// retryable condition, not a token problem.
func TestExchangePublicToken_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error_type":    "RATE_LIMIT_EXCEEDED",
			"error_code":    "RATE_LIMIT",
			"error_message": "rate limit exceeded",
		})
	})

	_, err := client.ExchangePublicToken(context.Background(), "public-sandbox-1")

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestExchangePublicToken_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client := NewClient("sandbox", "client-id", "secret", time.Second, WithBaseURL(server.URL))

	_, err := client.ExchangePublicToken(context.Background(), "public-sandbox-1")

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestCreateLinkToken(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, linkTokenPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{
			"link_token": "link-sandbox-abc",
			"expiration": "2025-06-15T16:00:00Z",
			"request_id": "req_2",
		})
	})

	result, err := client.CreateLinkToken(context.Background(), CreateLinkTokenParams{
		UserID:     "user_1",
		WebhookURL: "https://example.com/plaid/webhook",
	})

	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-abc", result.LinkToken)

	user, ok := gotBody["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user_1", user["client_user_id"])
	assert.Equal(t, "https://example.com/plaid/webhook", gotBody["webhook"])
	assert.Equal(t, []any{"transactions"}, gotBody["products"])
}

func TestRemoveItem(t *testing.T) {
	var gotBody map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, itemRemovePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req_3"})
	})

	err := client.RemoveItem(context.Background(), "access-sandbox-1")

	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-1", gotBody["access_token"])
}

func TestNewClient_UnknownEnvironmentFallsBackToSandbox(t *testing.T) {
	client := NewClient("staging", "client-id", "secret", time.Second)
	assert.Equal(t, environments["sandbox"], client.baseURL)
}
