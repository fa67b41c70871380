package common

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

type Network struct {
	Name   string
	Params *chaincfg.Params
}

var BitcoinMainNet = Network{
	Name:   "mainnet",
	Params: &chaincfg.MainNetParams,
}

var BitcoinTestNet = Network{
	Name:   "testnet",
	Params: &chaincfg.TestNet3Params,
}

var BitcoinSigNet = Network{
	Name:   "signet",
	Params: &chaincfg.SigNetParams,
}

var BitcoinRegTest = Network{
	Name:   "regtest",
	Params: &chaincfg.RegressionNetParams,
}

// ParseNetwork resolves a network by name, case insensitive. "bitcoin" is an
// alias of mainnet.
func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(name) {
	case "mainnet", "bitcoin":
		return BitcoinMainNet, nil
	case "testnet":
		return BitcoinTestNet, nil
	case "signet":
		return BitcoinSigNet, nil
	case "regtest":
		return BitcoinRegTest, nil
	default:
		return Network{}, fmt.Errorf("unknown network %s", name)
	}
}
