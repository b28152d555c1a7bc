package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/chainsweep/service/metrics"
)

// DefaultBaseURL is the Etherscan API endpoint. Any Etherscan-compatible
// explorer (BscScan, PolygonScan, Blockscout) can be used instead.
const DefaultBaseURL = "https://api.etherscan.io/api"

// Fixed tokentx query parameters. The full block range is requested in one
// call, oldest first.
const (
	startBlock = "0"
	endBlock   = "99999999"
	sortOrder  = "asc"
)

// TransferEvent is one ERC-20 transfer as returned by the explorer's
// account/tokentx action. All numeric fields are string-encoded by the API.
type TransferEvent struct {
	BlockNumber     string `json:"blockNumber,omitempty"`
	TimeStamp       string `json:"timeStamp,omitempty"`
	Hash            string `json:"hash,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	Value           string `json:"value"` // raw amount, decimals not applied
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal,omitempty"`
}

// requiredFields must be present and non-null in every transfer record.
var requiredFields = []string{"contractAddress", "to", "value", "tokenName", "tokenSymbol"}

// UnmarshalJSON decodes a transfer and rejects records that omit a field the
// aggregation depends on. An empty string is accepted; an absent or null key is not.
func (e *TransferEvent) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("missing required field %q", name)
		}
	}

	type transferEvent TransferEvent
	return json.Unmarshal(data, (*transferEvent)(e))
}

// Client is the HTTP client for an Etherscan-compatible explorer API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a new explorer client.
// If httpClient is nil, a client without a timeout is used; its transport is
// instrumented when m is non-nil. If m is nil, no metrics are recorded.
func NewClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: metrics.InstrumentedTransport(m, nil)}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// TokenTransfers fetches the complete token transfer history of address in a
// single request. A response without a result (or with a null one) yields an
// empty slice. The explorer's status field is not inspected: a payload whose
// result is a list is returned as-is, while one whose result is an error
// string fails.
func (c *Client) TokenTransfers(ctx context.Context, address string) ([]TransferEvent, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("startblock", startBlock)
	params.Set("endblock", endBlock)
	params.Set("sort", sortOrder)
	params.Set("apikey", c.apiKey)

	u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.DebugContext(ctx, "requesting token transfers",
		"endpoint", c.baseURL,
		"address", address,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseErrorResponse(resp)
	}

	var apiResp explorerResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	events, err := apiResp.transfers()
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched token transfers",
		"address", address,
		"status", apiResp.Status,
		"message", apiResp.Message,
		"count", len(events),
		"duration", time.Since(start),
	)
	if c.metrics != nil {
		c.metrics.RecordTransfersFetched(address, len(events))
	}

	return events, nil
}

// explorerResponse is the envelope shared by all Etherscan-style endpoints.
// Result is kept raw: it is a list on success and a string on most errors.
type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// transfers decodes the result field into transfer events.
func (r *explorerResponse) transfers() ([]TransferEvent, error) {
	raw := bytes.TrimSpace(r.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []TransferEvent{}, nil
	}

	switch raw[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("failed to decode transfer events: %w", err)
		}
		events := make([]TransferEvent, len(records))
		for i, record := range records {
			if err := json.Unmarshal(record, &events[i]); err != nil {
				return nil, fmt.Errorf("failed to decode transfer %d: %w", i, err)
			}
		}
		return events, nil
	case '"':
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		return nil, fmt.Errorf("explorer returned an error result (status %q, message %q): %s", r.Status, r.Message, msg)
	default:
		return nil, fmt.Errorf("unexpected result payload: %s", string(raw))
	}
}

// parseErrorResponse attempts to parse an error response from the explorer.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp explorerResponse

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Message)
}
