package ports

import "context"

// BitcoinWallet is the depositor's BTC wallet.
type BitcoinWallet interface {
	GetAddress(ctx context.Context) (string, error)
	// GetPublicKey returns the hex encoded x-only key of the depositor.
	GetPublicKey(ctx context.Context) (string, error)
	// GetTaprootInternalKey returns the internal key of the wallet's taproot
	// outputs, as required to sign them.
	GetTaprootInternalKey(ctx context.Context) ([]byte, error)
	// SignPsbt signs every input the wallet owns and returns the b64 PSBT.
	SignPsbt(ctx context.Context, psbt string) (string, error)
	// SignMessage returns the b64 BIP-322 simple signature of the message.
	SignMessage(ctx context.Context, message string) (string, error)
}
