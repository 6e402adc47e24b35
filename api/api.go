// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package api implements the claim HTTP surface (spec.md §6): the JSON
// boundary the core exposes to clients. Routing uses gorilla/mux and CORS
// uses rs/cors, the same pairing the rest of this codebase's HTTP-facing
// services use instead of net/http's bare ServeMux, since path variables
// (the address in the balance lookup) and configurable cross-origin
// policy are both first-class requirements here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/unicitynetwork/alpha-faucet/address"
	"github.com/unicitynetwork/alpha-faucet/chaincfg"
	"github.com/unicitynetwork/alpha-faucet/claim"
	"github.com/unicitynetwork/alpha-faucet/faucetz"
	"github.com/unicitynetwork/alpha-faucet/store"
	"github.com/unicitynetwork/alpha-faucet/tokencfg"
)

// Server wires the claim coordinator and balance store behind the HTTP
// surface spec.md §6 describes.
type Server struct {
	Coordinator *claim.Coordinator
	Store       *store.Store
	HRP         string
	CORSOrigin  string
}

// Handler builds the full gorilla/mux router, including CORS and request
// logging middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/faucet/balance/{addr}", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/faucet/request", s.handleRequest).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/faucet/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{s.CORSOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return loggingMiddleware(c.Handler(r))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var fe *faucetz.Error
	if !errors.As(err, &fe) {
		fe = faucetz.Wrap(faucetz.KindInternal, err, "unexpected error")
	}
	log.Warnf("request failed: %v", fe)
	writeJSON(w, fe.Kind.HTTPStatus(), map[string]any{
		"success": false,
		"error":   fe.Message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// A cheap query against the store, so a wedged database fails the probe.
	if _, err := s.Store.CountTotal(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	network := chaincfg.ParamsForHRP(s.HRP)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"network":   network.Name,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addrRaw := mux.Vars(r)["addr"]

	validation := address.Validate(addrRaw, s.HRP)
	if !validation.Valid {
		writeError(w, faucetz.New(faucetz.KindInvalidAddress, "invalid address: %s", validation.Reason))
		return
	}

	row, err := s.Store.Find(r.Context(), validation.Normalized)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"success":     true,
		"id":          tokencfg.ID,
		"name":        tokencfg.Name,
		"symbol":      tokencfg.Symbol,
		"decimals":    tokencfg.Decimals,
		"description": tokencfg.Description,
		"l1_addr":     validation.Normalized,
	}

	if row == nil {
		resp["inSnapshot"] = false
		resp["amount"] = 0
		resp["amountInSmallUnits"] = 0
		resp["initialAmount"] = 0
		resp["initialAmountInSmallUnits"] = 0
		resp["spent"] = false
		resp["unicityId"] = nil
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp["inSnapshot"] = true
	resp["initialAmount"] = tokencfg.ToCoinUnits(row.InitialAmount)
	resp["initialAmountInSmallUnits"] = row.InitialAmount
	resp["spent"] = row.Consumed
	if row.Consumed {
		resp["amount"] = 0
		resp["amountInSmallUnits"] = 0
		if row.DestinationID.Valid {
			resp["unicityId"] = row.DestinationID.String
		} else {
			resp["unicityId"] = nil
		}
		if row.ConsumedAt.Valid {
			resp["mintedAt"] = row.ConsumedAt.String
		}
	} else {
		resp["amount"] = tokencfg.ToCoinUnits(row.InitialAmount)
		resp["amountInSmallUnits"] = row.InitialAmount
		resp["unicityId"] = nil
	}

	writeJSON(w, http.StatusOK, resp)
}

type claimRequestBody struct {
	L1Addr    string `json:"l1_addr"`
	UnicityID string `json:"unicityId"`
	Amount    int64  `json:"amount"`
	Signature string `json:"signature"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body claimRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, faucetz.Wrap(faucetz.KindInvalidInput, err, "malformed request body"))
		return
	}
	if body.Amount < 1 {
		writeError(w, faucetz.New(faucetz.KindInvalidInput, "amount must be an integer >= 1"))
		return
	}

	result, err := s.Coordinator.Execute(r.Context(), claim.Request{
		AddressRaw:    body.L1Addr,
		DestinationID: body.UnicityID,
		Amount:        uint64(body.Amount),
		SignatureHex:  body.Signature,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"addr":        result.Address,
		"unicityId":   result.DestinationID,
		"amount":      result.AmountCoins,
		"relayTxId":   result.RelayTxID,
		"ok":          true,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meta, err := s.Store.GetSnapshotMeta(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.Store.CountTotal(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	unconsumed, err := s.Store.CountUnconsumed(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"success":            true,
		"totalAddresses":     total,
		"availableAddresses": unconsumed,
		"mintedAddresses":    total - unconsumed,
	}
	if meta != nil {
		resp["snapshotBlock"] = meta.BlockHeight
		resp["createdAt"] = meta.CreatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
