package jsonrpcprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vault-network/vault/common/polling"
	"github.com/vault-network/vault/internal/core/domain"
	"github.com/vault-network/vault/internal/core/ports"
)

const (
	requestTransactionsMethod = "vaultProvider_requestClaimAndPayoutTransactions"
	submitSignaturesMethod    = "vaultProvider_submitPayoutSignatures"
)

type txHex struct {
	TxHex string `json:"tx_hex"`
}

type claimAndPayoutTx struct {
	ClaimerPubkey string `json:"claimer_pubkey"`
	ClaimTx       txHex  `json:"claim_tx"`
	PayoutTx      txHex  `json:"payout_tx"`
}

type claimAndPayoutResponse struct {
	Txs []claimAndPayoutTx `json:"txs"`
}

type vaultProvider struct {
	client *rpc.Client
}

func NewVaultProvider(ctx context.Context, url string) (ports.VaultProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault provider: %s", err)
	}
	return &vaultProvider{client}, nil
}

func (p *vaultProvider) RequestClaimAndPayoutTransactions(
	ctx context.Context, peginTxid, depositorPubkey string,
) ([]domain.ClaimPayout, error) {
	var resp claimAndPayoutResponse
	if err := p.client.CallContext(
		ctx, &resp, requestTransactionsMethod, peginTxid, depositorPubkey,
	); err != nil {
		return nil, classify(err)
	}

	payouts := make([]domain.ClaimPayout, 0, len(resp.Txs))
	for _, tx := range resp.Txs {
		payouts = append(payouts, domain.ClaimPayout{
			ClaimerPubkey: tx.ClaimerPubkey,
			ClaimTx:       tx.ClaimTx.TxHex,
			PayoutTx:      tx.PayoutTx.TxHex,
		})
	}
	return payouts, nil
}

func (p *vaultProvider) SubmitPayoutSignatures(
	ctx context.Context, peginTxid, depositorPubkey string, signatures map[string]string,
) error {
	if err := p.client.CallContext(
		ctx, nil, submitSignaturesMethod, peginTxid, depositorPubkey, signatures,
	); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks transport failures and server side errors as transient,
// application errors are left to the polling classifiers.
func classify(err error) error {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized ||
			httpErr.StatusCode == http.StatusForbidden:
			return polling.Terminal(err)
		case httpErr.StatusCode >= http.StatusInternalServerError ||
			httpErr.StatusCode == http.StatusTooManyRequests:
			return polling.Transient(err)
		}
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// connection level failure
	return polling.Transient(err)
}
