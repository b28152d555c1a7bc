package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/chainsweep/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x5bd808ab85c124f99080da5f864edcb39950ede5"

func TestTokenTransfers_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "tokentx", q.Get("action"))
		assert.Equal(t, testAddress, q.Get("address"))
		assert.Equal(t, "0", q.Get("startblock"))
		assert.Equal(t, "99999999", q.Get("endblock"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "secret-key", q.Get("apikey"))

		response := map[string]interface{}{
			"status":  "1",
			"message": "OK",
			"result": []map[string]string{
				{
					"blockNumber":     "17000000",
					"hash":            "0xdeadbeef",
					"from":            "0x1111111111111111111111111111111111111111",
					"to":              testAddress,
					"contractAddress": "0xdac17f958d2ee523a2206206994597c13d831ec7",
					"value":           "1500000",
					"tokenName":       "Tether USD",
					"tokenSymbol":     "USDT",
					"tokenDecimal":    "6",
				},
				{
					"from":            testAddress,
					"to":              "0x2222222222222222222222222222222222222222",
					"contractAddress": "0xdac17f958d2ee523a2206206994597c13d831ec7",
					"value":           "500000",
					"tokenName":       "Tether USD",
					"tokenSymbol":     "USDT",
					"tokenDecimal":    "6",
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/api", "secret-key", nil, nil, nil)
	events, err := client.TokenTransfers(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Tether USD", events[0].TokenName)
	assert.Equal(t, "USDT", events[0].TokenSymbol)
	assert.Equal(t, "1500000", events[0].Value)
	assert.Equal(t, testAddress, events[0].To)
	assert.Equal(t, "6", events[0].TokenDecimal)
	assert.Equal(t, "0xdeadbeef", events[0].Hash)
	assert.Equal(t, "500000", events[1].Value)
}

func TestTokenTransfers_MissingResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"1","message":"OK"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", nil, nil, nil)
	events, err := client.TokenTransfers(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestTokenTransfers_NullResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","message":"OK","result":null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", nil, nil, nil)
	events, err := client.TokenTransfers(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTokenTransfers_NoTransactionsFound(t *testing.T) {
	// Explorers report an empty history with status "0" and an empty list.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", nil, nil, nil)
	events, err := client.TokenTransfers(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTokenTransfers_ErrorStringResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Invalid API Key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key", nil, nil, nil)
	events, err := client.TokenTransfers(context.Background(), testAddress)
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Contains(t, err.Error(), "Invalid API Key")
	assert.Contains(t, err.Error(), "NOTOK")
}

func TestTokenTransfers_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", nil, nil, nil)
	_, err := client.TokenTransfers(context.Background(), testAddress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestTokenTransfers_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", nil, nil, nil)
	_, err := client.TokenTransfers(context.Background(), testAddress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestTokenTransfers_ServerErrorWithMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"0","message":"Max rate limit reached","result":""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", nil, nil, nil)
	_, err := client.TokenTransfers(context.Background(), testAddress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Max rate limit reached")
}

func TestTokenTransfers_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "key", nil, nil, nil)
	_, err := client.TokenTransfers(ctx, testAddress)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenTransfers_RecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"to":"0x1","contractAddress":"0xc","value":"1","tokenName":"A","tokenSymbol":"A"},
			{"to":"0x2","contractAddress":"0xc","value":"2","tokenName":"A","tokenSymbol":"A"},
			{"to":"0x3","contractAddress":"0xd","value":"3","tokenName":"B","tokenSymbol":"B"}
		]}`))
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	client := NewClient(server.URL, "key", nil, m, nil)
	events, err := client.TokenTransfers(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, events, 3)

	count, err := testutil.GatherAndCount(registry, "token_transfers_fetched_total", "explorer_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("", "key", nil, nil, nil)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Zero(t, client.httpClient.Timeout)
}

func TestTokenTransfers_MissingRequiredFieldFails(t *testing.T) {
	complete := map[string]interface{}{
		"contractAddress": "0xdac17f958d2ee523a2206206994597c13d831ec7",
		"to":              testAddress,
		"value":           "5",
		"tokenName":       "Tether USD",
		"tokenSymbol":     "USDT",
	}

	for _, field := range []string{"contractAddress", "to", "value", "tokenName", "tokenSymbol"} {
		for _, mode := range []string{"absent", "null"} {
			t.Run(field+"/"+mode, func(t *testing.T) {
				broken := make(map[string]interface{}, len(complete))
				for k, v := range complete {
					broken[k] = v
				}
				if mode == "absent" {
					delete(broken, field)
				} else {
					broken[field] = nil
				}

				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					json.NewEncoder(w).Encode(map[string]interface{}{
						"status":  "1",
						"message": "OK",
						"result":  []interface{}{complete, broken},
					})
				}))
				defer server.Close()

				client := NewClient(server.URL, "key", nil, nil, nil)
				events, err := client.TokenTransfers(context.Background(), testAddress)
				require.Error(t, err)
				assert.Nil(t, events)
				assert.Contains(t, err.Error(), "transfer 1")
				assert.Contains(t, err.Error(), `missing required field "`+field+`"`)
			})
		}
	}
}

func TestTransferEvent_UnmarshalJSON(t *testing.T) {
	var events []TransferEvent
	err := json.Unmarshal([]byte(`[{"value":"5"}]`), &events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field")

	var ev TransferEvent
	err = json.Unmarshal([]byte(`{"contractAddress":"0xc","to":"","value":"5","tokenName":"","tokenSymbol":"","tokenDecimal":"6"}`), &ev)
	require.NoError(t, err)
	assert.Equal(t, "0xc", ev.ContractAddress)
	assert.Equal(t, "", ev.To)
	assert.Equal(t, "6", ev.TokenDecimal)
}
