package ports

import (
	"context"

	"github.com/vault-network/vault/common/connector"
)

// UnfundedTxBuilder creates the zero-input template of a peg-in transaction.
type UnfundedTxBuilder interface {
	CreateUnfundedPeginTx(ctx context.Context, params connector.PeginParams) (string, error)
}
