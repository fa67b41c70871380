package pegin

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

type ScriptType int

const (
	ScriptTypeUnknown ScriptType = iota
	ScriptTypeP2WPKH
	ScriptTypeP2WSH
	ScriptTypeP2TR
)

func (t ScriptType) String() string {
	switch t {
	case ScriptTypeP2WPKH:
		return "p2wpkh"
	case ScriptTypeP2WSH:
		return "p2wsh"
	case ScriptTypeP2TR:
		return "p2tr"
	default:
		return "unknown"
	}
}

// ClassifyScript matches the scriptPubKey against the segwit v0 and v1
// templates by length and opcode prefix.
func ClassifyScript(pkScript []byte) (ScriptType, error) {
	switch {
	case len(pkScript) == 22 &&
		pkScript[0] == txscript.OP_0 && pkScript[1] == txscript.OP_DATA_20:
		return ScriptTypeP2WPKH, nil
	case len(pkScript) == 34 &&
		pkScript[0] == txscript.OP_0 && pkScript[1] == txscript.OP_DATA_32:
		return ScriptTypeP2WSH, nil
	case len(pkScript) == 34 &&
		pkScript[0] == txscript.OP_1 && pkScript[1] == txscript.OP_DATA_32:
		return ScriptTypeP2TR, nil
	default:
		return ScriptTypeUnknown, fmt.Errorf("%w: %x", ErrUnsupportedScriptType, pkScript)
	}
}
