package connector

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/vault-network/vault/common"
)

var ErrMissingVaultKeepers = fmt.Errorf("at least one vault keeper is required")

// PeginPayoutConnector locks the vault output of a peg-in. Its only leaf
// requires the depositor, the vault provider and every vault keeper and
// universal challenger to sign. The key path is unspendable.
type PeginPayoutConnector struct {
	Depositor            *btcec.PublicKey
	VaultProvider        *btcec.PublicKey
	VaultKeepers         []*btcec.PublicKey
	UniversalChallengers []*btcec.PublicKey
}

func NewPeginPayoutConnector(
	depositor, vaultProvider *btcec.PublicKey,
	vaultKeepers, universalChallengers []*btcec.PublicKey,
) (*PeginPayoutConnector, error) {
	if depositor == nil {
		return nil, fmt.Errorf("missing depositor pubkey")
	}
	if vaultProvider == nil {
		return nil, fmt.Errorf("missing vault provider pubkey")
	}
	if len(vaultKeepers) <= 0 {
		return nil, ErrMissingVaultKeepers
	}

	return &PeginPayoutConnector{
		Depositor:            depositor,
		VaultProvider:        vaultProvider,
		VaultKeepers:         vaultKeepers,
		UniversalChallengers: universalChallengers,
	}, nil
}

// PayoutScript returns the leaf script:
//
//	<depositor> CHECKSIGVERIFY <vault provider> CHECKSIGVERIFY
//	<k_0> CHECKSIG <k_1> CHECKSIGADD ... <c_m> CHECKSIGADD <n+m> NUMEQUAL
func (c *PeginPayoutConnector) PayoutScript() ([]byte, error) {
	builder := txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(c.Depositor)).
		AddOp(txscript.OP_CHECKSIGVERIFY).
		AddData(schnorr.SerializePubKey(c.VaultProvider)).
		AddOp(txscript.OP_CHECKSIGVERIFY)

	signers := append(
		append([]*btcec.PublicKey{}, c.VaultKeepers...), c.UniversalChallengers...,
	)
	for i, key := range signers {
		builder.AddData(schnorr.SerializePubKey(key))
		if i == 0 {
			builder.AddOp(txscript.OP_CHECKSIG)
			continue
		}
		builder.AddOp(txscript.OP_CHECKSIGADD)
	}

	return builder.
		AddInt64(int64(len(signers))).
		AddOp(txscript.OP_NUMEQUAL).
		Script()
}

func (c *PeginPayoutConnector) TapLeaf() (*txscript.TapLeaf, error) {
	script, err := c.PayoutScript()
	if err != nil {
		return nil, err
	}
	leaf := txscript.NewBaseTapLeaf(script)
	return &leaf, nil
}

// TaprootScriptHash is the tap leaf hash of the payout script, the one
// committed to by script path signatures.
func (c *PeginPayoutConnector) TaprootScriptHash() (*chainhash.Hash, error) {
	leaf, err := c.TapLeaf()
	if err != nil {
		return nil, err
	}
	hash := leaf.TapHash()
	return &hash, nil
}

func (c *PeginPayoutConnector) TaprootKey() (*btcec.PublicKey, error) {
	tapTree, err := c.tapTree()
	if err != nil {
		return nil, err
	}
	root := tapTree.RootNode.TapHash()
	return txscript.ComputeTaprootOutputKey(common.UnspendableKey(), root[:]), nil
}

// ControlBlock returns the serialized control block revealing the payout leaf.
func (c *PeginPayoutConnector) ControlBlock() ([]byte, error) {
	tapTree, err := c.tapTree()
	if err != nil {
		return nil, err
	}
	proof := tapTree.LeafMerkleProofs[0]
	controlBlock := proof.ToControlBlock(common.UnspendableKey())
	return controlBlock.ToBytes()
}

func (c *PeginPayoutConnector) ScriptPubKey() ([]byte, error) {
	taprootKey, err := c.TaprootKey()
	if err != nil {
		return nil, err
	}
	return common.P2TRScript(taprootKey)
}

func (c *PeginPayoutConnector) Address(net *chaincfg.Params) (string, error) {
	taprootKey, err := c.TaprootKey()
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(taprootKey), net)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (c *PeginPayoutConnector) tapTree() (*txscript.IndexedTapScriptTree, error) {
	leaf, err := c.TapLeaf()
	if err != nil {
		return nil, err
	}
	return txscript.AssembleTaprootScriptTree(*leaf), nil
}
