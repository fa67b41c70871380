package ports

import (
	"context"

	"github.com/vault-network/vault/common/pegin"
)

type Explorer interface {
	GetUtxos(ctx context.Context, address string) ([]pegin.UTXO, error)
	GetTxHex(ctx context.Context, txid string) (string, error)
	Broadcast(ctx context.Context, txHex string) (string, error)
}

type FeeOracle interface {
	GetNetworkFeeRates(ctx context.Context) (pegin.NetworkFeeRates, error)
}
