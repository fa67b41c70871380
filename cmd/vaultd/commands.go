package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/vault-network/vault/common"
	"github.com/vault-network/vault/common/pegin"
)

// flags
var (
	utxosFlag = &cli.StringFlag{
		Name:     "utxos",
		Usage:    "path to the JSON list of wallet utxos",
		Required: true,
	}
	feeRateFlag = &cli.Float64Flag{
		Name:  "fee-rate",
		Usage: "fee rate in sat/vbyte",
		Value: pegin.DefaultNetworkFeeRates.HalfHourFee,
	}
	amountFlag = &cli.Uint64Flag{
		Name:     "amount",
		Usage:    "peg-in amount in sats",
		Required: true,
	}
	amountsFlag = &cli.Uint64SliceFlag{
		Name:     "amounts",
		Usage:    "vault amounts in sats, at most 2",
		Required: true,
	}
	txFlag = &cli.StringFlag{
		Name:     "tx",
		Usage:    "hex encoded unfunded peg-in transaction",
		Required: true,
	}
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "taproot address receiving the split outputs",
	}
	internalKeyFlag = &cli.StringFlag{
		Name:  "internal-key",
		Usage: "hex encoded x-only internal key of the split address",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "bitcoin network",
		Value: common.BitcoinMainNet.Name,
	}
)

// commands
var (
	estimateCmd = &cli.Command{
		Name:   "estimate",
		Usage:  "Select the utxos funding a peg-in and estimate its fee",
		Action: estimateAction,
		Flags:  []cli.Flag{utxosFlag, amountFlag, feeRateFlag},
	}
	parseCmd = &cli.Command{
		Name:   "parse",
		Usage:  "Parse an unfunded peg-in transaction",
		Action: parseAction,
		Flags:  []cli.Flag{txFlag},
	}
	planCmd = &cli.Command{
		Name:   "plan",
		Usage:  "Plan how the utxos fund the given vault amounts",
		Action: planAction,
		Flags: []cli.Flag{
			utxosFlag, amountsFlag, feeRateFlag, addressFlag, internalKeyFlag, networkFlag,
		},
	}
)

type utxoFile struct {
	Txid          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         uint64 `json:"value"`
	ScriptPubKey  string `json:"scriptPubKey"`
	WitnessScript string `json:"witnessScript,omitempty"`
}

func estimateAction(ctx *cli.Context) error {
	utxos, err := readUtxos(ctx.String(utxosFlag.Name))
	if err != nil {
		return err
	}
	selection, err := pegin.SelectUtxos(
		utxos, ctx.Uint64(amountFlag.Name), ctx.Float64(feeRateFlag.Name),
	)
	if err != nil {
		return err
	}
	return printJSON(selection)
}

func parseAction(ctx *cli.Context) error {
	unfunded, err := pegin.ParseUnfundedTx(ctx.String(txFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"version":     unfunded.Version,
		"locktime":    unfunded.LockTime,
		"vaultValue":  unfunded.VaultValue,
		"vaultScript": hex.EncodeToString(unfunded.VaultScript),
	})
}

func planAction(ctx *cli.Context) error {
	utxos, err := readUtxos(ctx.String(utxosFlag.Name))
	if err != nil {
		return err
	}
	network, err := common.ParseNetwork(ctx.String(networkFlag.Name))
	if err != nil {
		return err
	}

	var internalKey []byte
	if key := ctx.String(internalKeyFlag.Name); len(key) > 0 {
		if internalKey, err = hex.DecodeString(key); err != nil {
			return fmt.Errorf("invalid internal key: %s", err)
		}
	}

	plan, err := pegin.PlanAllocation(
		ctx.Uint64Slice(amountsFlag.Name), utxos, ctx.Float64(feeRateFlag.Name),
		pegin.SplitParams{
			Address:            ctx.String(addressFlag.Name),
			Network:            network.Params,
			TaprootInternalKey: internalKey,
		},
	)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

func readUtxos(path string) ([]pegin.UTXO, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read utxos: %s", err)
	}
	var list []utxoFile
	if err := json.Unmarshal(buf, &list); err != nil {
		return nil, fmt.Errorf("invalid utxos file: %s", err)
	}

	utxos := make([]pegin.UTXO, 0, len(list))
	for _, u := range list {
		script, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("invalid script of utxo %s:%d: %s", u.Txid, u.Vout, err)
		}
		witnessScript, err := hex.DecodeString(u.WitnessScript)
		if err != nil {
			return nil, fmt.Errorf("invalid witness script of utxo %s:%d: %s", u.Txid, u.Vout, err)
		}
		utxos = append(utxos, pegin.UTXO{
			Txid:          u.Txid,
			Vout:          u.Vout,
			Value:         u.Value,
			ScriptPubKey:  script,
			WitnessScript: witnessScript,
		})
	}
	return utxos, nil
}

func printJSON(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}
