// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mintclient talks to the upstream mint service the claim
// coordinator relays to after reserving a balance (spec.md §6 "Upstream
// mint"). Its shape — a bounded-timeout *http.Client wrapped by a small
// typed request/response pair — is lifted directly from the teacher
// repo's liquidity.AttestorClient, which does the same JSON-over-HTTP
// call-an-external-collaborator dance for market-making attestations.
package mintclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unicitynetwork/alpha-faucet/faucetz"
)

// DefaultTimeout is the recommended upper bound from spec.md §5
// ("Cancellation & timeouts").
const DefaultTimeout = 30 * time.Second

// Client relays mint requests to the upstream service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New returns a Client that POSTs to baseURL within timeout. A zero
// timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// mintRequest is the body sent to the upstream mint (spec.md §6).
type mintRequest struct {
	UnicityID string  `json:"unicityId"`
	Coin      string  `json:"coin"`
	Amount    float64 `json:"amount"`
}

// mintResponse is the loosely-typed shape the upstream may return; only
// data.requestId / data.txId are consulted (spec.md §6).
type mintResponse struct {
	Success bool            `json:"success"`
	Data    mintResponseData `json:"data"`
	Error   string          `json:"error"`
}

type mintResponseData struct {
	RequestID string `json:"requestId"`
	TxID      string `json:"txId"`
}

// Result is what Relay returns on success.
type Result struct {
	RelayTxID    string
	ResponseJSON string
}

// Relay POSTs a mint request for destinationID/coinAmount to the upstream
// mint service (spec.md §4.5 step 10 / §6). Any transport error, timeout,
// or non-2xx status is reported as a faucetz.KindUpstreamFailure error; the
// reservation the caller already made is left untouched by design.
func (c *Client) Relay(ctx context.Context, destinationID, tokenName string, coinAmount float64) (Result, error) {
	reqBody, err := json.Marshal(mintRequest{
		UnicityID: destinationID,
		Coin:      tokenName,
		Amount:    coinAmount,
	})
	if err != nil {
		return Result{}, faucetz.Wrap(faucetz.KindInternal, err, "marshaling mint request")
	}

	url := fmt.Sprintf("%s/api/v1/faucet/request", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, faucetz.Wrap(faucetz.KindInternal, err, "building mint request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "alpha-faucet/1.0")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, faucetz.Wrap(faucetz.KindUpstreamFailure, err, "upstream mint request failed")
	}
	defer httpResp.Body.Close()

	respData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Result{}, faucetz.Wrap(faucetz.KindUpstreamFailure, err, "reading upstream mint response")
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		log.Warnf("upstream mint returned status %d for destination %s", httpResp.StatusCode, destinationID)
		return Result{}, faucetz.New(faucetz.KindUpstreamFailure, "upstream mint returned status %d", httpResp.StatusCode)
	}

	var resp mintResponse
	txID := "unknown"
	if err := json.Unmarshal(respData, &resp); err == nil {
		switch {
		case resp.Data.RequestID != "":
			txID = resp.Data.RequestID
		case resp.Data.TxID != "":
			txID = resp.Data.TxID
		}
	}

	log.Infof("relayed mint request for destination %s, tx id %s", destinationID, txID)
	return Result{RelayTxID: txID, ResponseJSON: string(respData)}, nil
}
