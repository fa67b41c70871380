package pegin_test

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/vault-network/vault/common/pegin"
)

var (
	network = &chaincfg.RegressionNetParams

	xonlyKey, _ = hex.DecodeString(
		"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
	)
	p2trScript    = append([]byte{txscript.OP_1, txscript.OP_DATA_32}, xonlyKey...)
	p2wpkhScript  = append([]byte{txscript.OP_0, txscript.OP_DATA_20}, make([]byte, 20)...)
	p2pkhScript   = append(append([]byte{
		txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20,
	}, make([]byte, 20)...), txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)
	witnessScript = []byte{txscript.OP_TRUE}
	p2wshScript   = func() []byte {
		hash := make([]byte, 32)
		copy(hash, btcutil.Hash160(witnessScript))
		return append([]byte{txscript.OP_0, txscript.OP_DATA_32}, hash...)
	}()

	taprootAddress = func() string {
		addr, err := btcutil.NewAddressTaproot(xonlyKey, network)
		if err != nil {
			panic(err)
		}
		return addr.EncodeAddress()
	}()
	segwitAddress = func() string {
		addr, err := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), network)
		if err != nil {
			panic(err)
		}
		return addr.EncodeAddress()
	}()
)

func withMargin(fee uint64) uint64 {
	return uint64(math.Ceil(float64(fee) * 1.1))
}

func makeUtxo(index int, value uint64) pegin.UTXO {
	return pegin.UTXO{
		Txid:         fmt.Sprintf("%064x", index+1),
		Vout:         uint32(index),
		Value:        value,
		ScriptPubKey: p2trScript,
	}
}

func makeUtxos(values ...uint64) []pegin.UTXO {
	utxos := make([]pegin.UTXO, 0, len(values))
	for i, v := range values {
		utxos = append(utxos, makeUtxo(i, v))
	}
	return utxos
}
