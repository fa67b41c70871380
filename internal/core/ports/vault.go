package ports

import (
	"context"

	"github.com/vault-network/vault/internal/core/domain"
)

type PeginRequest struct {
	Depositor          string
	DepositorBtcPubkey string
	PopSignature       string
	UnsignedPeginTx    string
	VaultProvider      string
}

type PeginReceipt struct {
	EthTxHash string
	VaultId   string
}

// VaultContract submits peg-in requests to the Ethereum vault contract.
type VaultContract interface {
	// SubmitPeginRequest returns once the transaction is mined successfully.
	SubmitPeginRequest(ctx context.Context, req PeginRequest) (*PeginReceipt, error)
}

// VaultProvider is the off-chain service co-signing payout transactions.
type VaultProvider interface {
	RequestClaimAndPayoutTransactions(
		ctx context.Context, peginTxid, depositorPubkey string,
	) ([]domain.ClaimPayout, error)
	SubmitPayoutSignatures(
		ctx context.Context, peginTxid, depositorPubkey string, signatures map[string]string,
	) error
}

// ArtifactStore keeps the data a depositor needs to recover its funds.
type ArtifactStore interface {
	Save(ctx context.Context, deposit *domain.Deposit) (string, error)
	Get(ctx context.Context, depositId string) ([]byte, error)
}
