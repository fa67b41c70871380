package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadUtxos(t *testing.T) {
	fixtures := []struct {
		name        string
		content     string
		expectedErr string
	}{
		{
			name: "valid",
			content: `[{"txid":"aa","vout":1,"value":5000,` +
				`"scriptPubKey":"5120c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"}]`,
		},
		{
			name:        "invalid json",
			content:     `{"txid"`,
			expectedErr: "invalid utxos file",
		},
		{
			name:        "invalid script",
			content:     `[{"txid":"aa","vout":0,"value":1,"scriptPubKey":"zz"}]`,
			expectedErr: "invalid script of utxo aa:0",
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "utxos.json")
			require.NoError(t, os.WriteFile(path, []byte(f.content), 0600))

			utxos, err := readUtxos(path)
			if f.expectedErr != "" {
				require.ErrorContains(t, err, f.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, utxos, 1)
			require.Equal(t, uint64(5000), utxos[0].Value)
			require.Len(t, utxos[0].ScriptPubKey, 34)
		})
	}

	_, err := readUtxos(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "failed to read utxos")
}
