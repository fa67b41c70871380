package jsonrpcprovider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/common/polling"
	jsonrpcprovider "github.com/vault-network/vault/internal/infrastructure/vaultprovider/jsonrpc"
)

const (
	peginTxid       = "0000000000000000000000000000000000000000000000000000000000000001"
	depositorPubkey = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
)

type request struct {
	Version string            `json:"jsonrpc"`
	Id      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func newServer(t *testing.T, handler func(req request) (interface{}, *rpcError, int)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr, status := handler(req)
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.Id}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func TestRequestClaimAndPayoutTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		server := newServer(t, func(req request) (interface{}, *rpcError, int) {
			require.Equal(t, "vaultProvider_requestClaimAndPayoutTransactions", req.Method)
			require.Len(t, req.Params, 2)
			require.JSONEq(t, `"`+peginTxid+`"`, string(req.Params[0]))
			return map[string]interface{}{
				"txs": []map[string]interface{}{{
					"claimer_pubkey": "claimer",
					"claim_tx":       map[string]string{"tx_hex": "claimhex"},
					"payout_tx":      map[string]string{"tx_hex": "payouthex"},
				}},
			}, nil, http.StatusOK
		})
		defer server.Close()

		provider, err := jsonrpcprovider.NewVaultProvider(ctx, server.URL)
		require.NoError(t, err)

		payouts, err := provider.RequestClaimAndPayoutTransactions(ctx, peginTxid, depositorPubkey)
		require.NoError(t, err)
		require.Len(t, payouts, 1)
		require.Equal(t, "claimer", payouts[0].ClaimerPubkey)
		require.Equal(t, "claimhex", payouts[0].ClaimTx)
		require.Equal(t, "payouthex", payouts[0].PayoutTx)
	})

	t.Run("errors", func(t *testing.T) {
		fixtures := []struct {
			name      string
			rpcErr    *rpcError
			status    int
			transient bool
			terminal  bool
		}{
			{"not indexed yet", &rpcError{-32000, "PegIn not found"}, http.StatusOK, true, false},
			{"unauthorized depositor", &rpcError{-32000, "Unauthorized depositor: " + depositorPubkey}, http.StatusOK, false, true},
			{"provider unavailable", nil, http.StatusServiceUnavailable, true, false},
			{"forbidden", nil, http.StatusForbidden, false, true},
		}

		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				server := newServer(t, func(request) (interface{}, *rpcError, int) {
					return nil, f.rpcErr, f.status
				})
				defer server.Close()

				provider, err := jsonrpcprovider.NewVaultProvider(ctx, server.URL)
				require.NoError(t, err)

				_, err = provider.RequestClaimAndPayoutTransactions(ctx, peginTxid, depositorPubkey)
				require.Error(t, err)
				require.Equal(t, f.transient, polling.IsTransientError(err))
				require.Equal(t, f.terminal, polling.IsTerminalError(err))
			})
		}
	})
}

func TestSubmitPayoutSignatures(t *testing.T) {
	ctx := context.Background()
	signatures := map[string]string{"claimer": "sig"}

	server := newServer(t, func(req request) (interface{}, *rpcError, int) {
		require.Equal(t, "vaultProvider_submitPayoutSignatures", req.Method)
		require.Len(t, req.Params, 3)
		require.JSONEq(t, `{"claimer": "sig"}`, string(req.Params[2]))
		return nil, nil, http.StatusOK
	})
	defer server.Close()

	provider, err := jsonrpcprovider.NewVaultProvider(ctx, server.URL)
	require.NoError(t, err)
	require.NoError(t, provider.SubmitPayoutSignatures(ctx, peginTxid, depositorPubkey, signatures))
}
