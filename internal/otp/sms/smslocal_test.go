package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSMSLocalClient_Defaults(t *testing.T) {
	client := NewSMSLocalClient("api-key", "", "")

	require.Equal(t, "api-key", client.APIKey)
	require.Equal(t, "https://www.smslocal.com/dev/bulkV2", client.BaseURL)
	require.Empty(t, client.Sender)
	require.NotNil(t, client.HTTPClient)
	require.Equal(t, defaultTimeout, client.HTTPClient.Timeout)
}

func TestSendCode_RequestFormat(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "test-api-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := NewSMSLocalClient("test-api-key", server.URL, "FIELDOPS")
	err := client.SendCode(context.Background(), "15550100001", "123456")

	require.NoError(t, err)
	require.Equal(t, "otp", received["route"])
	require.Equal(t, "15550100001", received["numbers"])
	require.Equal(t, "123456", received["variables"])
	require.Equal(t, "FIELDOPS", received["sender"])
}

func TestSendCode_MissingAPIKey(t *testing.T) {
	client := NewSMSLocalClient("", "", "")

	err := client.SendCode(context.Background(), "15550100001", "123456")

	require.ErrorContains(t, err, "API key not configured")
}

func TestSendCode_Non200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer server.Close()

	client := NewSMSLocalClient("api-key", server.URL, "")
	err := client.SendCode(context.Background(), "15550100001", "123456")

	require.ErrorContains(t, err, "status=400")
	require.ErrorContains(t, err, "invalid request")
}

func TestSendCode_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewSMSLocalClient("api-key", server.URL, "")
	err := client.SendCode(ctx, "15550100001", "123456")

	require.Error(t, err)
}
