package singlekeywallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/vault-network/vault/common"
	"github.com/vault-network/vault/common/pop"
	"github.com/vault-network/vault/internal/core/ports"
)

// wallet holds a single key and receives on its BIP-86 taproot address.
type wallet struct {
	privateKey *btcec.PrivateKey
	network    *chaincfg.Params
	pkScript   []byte
	address    string
}

func NewWallet(privateKey string, network *chaincfg.Params) (ports.BitcoinWallet, error) {
	if network == nil {
		return nil, fmt.Errorf("missing network")
	}
	buf, err := hex.DecodeString(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %s", err)
	}
	if len(buf) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid private key length %d", len(buf))
	}
	key, _ := btcec.PrivKeyFromBytes(buf)

	tapKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	pkScript, err := common.P2TRScript(tapKey)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(tapKey), network)
	if err != nil {
		return nil, err
	}

	return &wallet{
		privateKey: key,
		network:    network,
		pkScript:   pkScript,
		address:    addr.EncodeAddress(),
	}, nil
}

func (w *wallet) GetAddress(_ context.Context) (string, error) {
	return w.address, nil
}

func (w *wallet) GetPublicKey(_ context.Context) (string, error) {
	return hex.EncodeToString(schnorr.SerializePubKey(w.privateKey.PubKey())), nil
}

func (w *wallet) GetTaprootInternalKey(_ context.Context) ([]byte, error) {
	return schnorr.SerializePubKey(w.privateKey.PubKey()), nil
}

func (w *wallet) SignPsbt(_ context.Context, tx string) (string, error) {
	ptx, err := psbt.NewFromRawBytes(strings.NewReader(tx), true)
	if err != nil {
		return "", err
	}
	if err := w.signPacket(ptx); err != nil {
		return "", err
	}
	return ptx.B64Encode()
}

func (w *wallet) SignMessage(_ context.Context, message string) (string, error) {
	proof, err := pop.New(message, w.pkScript)
	if err != nil {
		return "", err
	}

	ptx := proof.Packet()
	ptx.Inputs[0].TaprootInternalKey = schnorr.SerializePubKey(w.privateKey.PubKey())
	if err := w.signPacket(ptx); err != nil {
		return "", err
	}

	signature, err := proof.Signature()
	if err != nil {
		return "", err
	}
	return signature.Encode()
}

func (w *wallet) signPacket(ptx *psbt.Packet) error {
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return err
	}

	prevouts := make(map[wire.OutPoint]*wire.TxOut)
	for i, input := range ptx.Inputs {
		if input.WitnessUtxo == nil {
			return fmt.Errorf("missing witness utxo for input %d", i)
		}
		prevouts[ptx.UnsignedTx.TxIn[i].PreviousOutPoint] = input.WitnessUtxo
	}
	prevoutFetcher := txscript.NewMultiPrevOutFetcher(prevouts)
	txsighashes := txscript.NewTxSigHashes(ptx.UnsignedTx, prevoutFetcher)

	for i, input := range ptx.Inputs {
		if len(input.TaprootLeafScript) > 0 {
			if err := w.signTapscriptSpend(updater, input, i, txsighashes, prevoutFetcher); err != nil {
				return err
			}
			continue
		}

		// taproot key path spend
		if len(input.TaprootInternalKey) > 0 {
			if err := w.signTaprootKeySpend(updater, input, i, txsighashes, prevoutFetcher); err != nil {
				return err
			}
		}
	}

	return nil
}

func (w *wallet) signTapscriptSpend(
	updater *psbt.Updater,
	input psbt.PInput,
	inputIndex int,
	txsighashes *txscript.TxSigHashes,
	prevoutFetcher *txscript.MultiPrevOutFetcher,
) error {
	myPubkey := schnorr.SerializePubKey(w.privateKey.PubKey())

	for _, leaf := range input.TaprootLeafScript {
		if !containsKey(leaf.Script, myPubkey) {
			continue
		}

		hash := txscript.NewTapLeaf(leaf.LeafVersion, leaf.Script).TapHash()
		if alreadySigned(input, myPubkey, hash[:]) {
			continue
		}

		preimage, err := txscript.CalcTapscriptSignaturehash(
			txsighashes,
			txscript.SigHashDefault,
			updater.Upsbt.UnsignedTx,
			inputIndex,
			prevoutFetcher,
			txscript.NewTapLeaf(leaf.LeafVersion, leaf.Script),
		)
		if err != nil {
			return err
		}

		sig, err := schnorr.Sign(w.privateKey, preimage)
		if err != nil {
			return err
		}

		updater.Upsbt.Inputs[inputIndex].TaprootScriptSpendSig = append(
			updater.Upsbt.Inputs[inputIndex].TaprootScriptSpendSig,
			&psbt.TaprootScriptSpendSig{
				XOnlyPubKey: myPubkey,
				LeafHash:    hash.CloneBytes(),
				Signature:   sig.Serialize(),
				SigHash:     txscript.SigHashDefault,
			},
		)
	}

	return nil
}

func (w *wallet) signTaprootKeySpend(
	updater *psbt.Updater,
	input psbt.PInput,
	inputIndex int,
	txsighashes *txscript.TxSigHashes,
	prevoutFetcher *txscript.MultiPrevOutFetcher,
) error {
	if len(input.TaprootKeySpendSig) > 0 {
		// already signed, skip
		return nil
	}

	// not the wallet's key, skip
	if !bytes.Equal(schnorr.SerializePubKey(w.privateKey.PubKey()), input.TaprootInternalKey) {
		return nil
	}
	if !bytes.Equal(input.WitnessUtxo.PkScript, w.pkScript) {
		return nil
	}

	preimage, err := txscript.CalcTaprootSignatureHash(
		txsighashes,
		txscript.SigHashDefault,
		updater.Upsbt.UnsignedTx,
		inputIndex,
		prevoutFetcher,
	)
	if err != nil {
		return err
	}

	sig, err := schnorr.Sign(txscript.TweakTaprootPrivKey(*w.privateKey, nil), preimage)
	if err != nil {
		return err
	}

	updater.Upsbt.Inputs[inputIndex].TaprootKeySpendSig = sig.Serialize()
	return nil
}

// containsKey tells whether the script pushes the given x-only key.
func containsKey(script, xOnlyKey []byte) bool {
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if bytes.Equal(tokenizer.Data(), xOnlyKey) {
			return true
		}
	}
	return false
}

func alreadySigned(input psbt.PInput, xOnlyKey, leafHash []byte) bool {
	for _, sig := range input.TaprootScriptSpendSig {
		if bytes.Equal(sig.XOnlyPubKey, xOnlyKey) && bytes.Equal(sig.LeafHash, leafHash) {
			return true
		}
	}
	return false
}
