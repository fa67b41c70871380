package common

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// 0250929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0
var unspendablePoint = []byte{
	0x02, 0x50, 0x92, 0x9b, 0x74, 0xc1, 0xa0, 0x49, 0x54, 0xb7, 0x8b, 0x4b, 0x60, 0x35, 0xe9, 0x7a,
	0x5e, 0x07, 0x8a, 0x5a, 0x0f, 0x28, 0xec, 0x96, 0xd5, 0x47, 0xbf, 0xee, 0x9a, 0xce, 0x80, 0x3a, 0xc0,
}

// UnspendableKey is the NUMS point used as taproot internal key when the key
// path must not be spendable.
func UnspendableKey() *btcec.PublicKey {
	key, _ := btcec.ParsePubKey(unspendablePoint)
	return key
}

func P2TRScript(taprootKey *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().AddOp(txscript.OP_1).AddData(schnorr.SerializePubKey(taprootKey)).Script()
}

// ParseXOnlyPubKey accepts 32-byte x-only keys, and 33-byte compressed keys
// whose parity is dropped.
func ParseXOnlyPubKey(str string) (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey %s: %s", str, err)
	}
	switch len(buf) {
	case 32:
		return schnorr.ParsePubKey(buf)
	case 33:
		return schnorr.ParsePubKey(buf[1:])
	default:
		return nil, fmt.Errorf("invalid pubkey %s: unexpected length %d", str, len(buf))
	}
}

func ParseXOnlyPubKeys(strs []string) ([]*btcec.PublicKey, error) {
	keys := make([]*btcec.PublicKey, 0, len(strs))
	for _, str := range strs {
		key, err := ParseXOnlyPubKey(str)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
