package ethcontract

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/internal/core/ports"
)

const (
	submitPeginRequestMethod = "submitPeginRequest"

	vaultContractABI = `[{
		"type": "function",
		"name": "submitPeginRequest",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "depositor", "type": "address"},
			{"name": "depositorBtcPubKey", "type": "bytes32"},
			{"name": "btcPopSignature", "type": "bytes"},
			{"name": "unsignedPegInTx", "type": "bytes"},
			{"name": "vaultProvider", "type": "address"}
		],
		"outputs": [{"name": "vaultId", "type": "bytes32"}]
	}]`
)

// Backend is the subset of the ethereum client the contract needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type peginArgs struct {
	depositor          common.Address
	depositorBtcPubKey [32]byte
	btcPopSignature    []byte
	unsignedPegInTx    []byte
	vaultProvider      common.Address
}

type vaultContract struct {
	backend  Backend
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	from     common.Address
	chainId  *big.Int
}

// NewVaultContract dials the given RPC endpoint and binds the vault contract
// deployed at address, transactions are signed with the given hex key.
func NewVaultContract(
	ctx context.Context, rpcUrl, address, privateKey string,
) (ports.VaultContract, error) {
	client, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	return NewVaultContractWithBackend(ctx, client, address, privateKey)
}

func NewVaultContractWithBackend(
	ctx context.Context, backend Backend, address, privateKey string,
) (ports.VaultContract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %s", address)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid ethereum private key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(vaultContractABI))
	if err != nil {
		return nil, err
	}
	chainId, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	contract := bind.NewBoundContract(
		common.HexToAddress(address), parsed, backend, backend, backend,
	)
	return &vaultContract{
		backend:  backend,
		contract: contract,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainId:  chainId,
	}, nil
}

// SubmitPeginRequest simulates the call to learn the vault id, then sends
// the transaction and waits for it to be mined.
func (c *vaultContract) SubmitPeginRequest(
	ctx context.Context, req ports.PeginRequest,
) (*ports.PeginReceipt, error) {
	args, err := parsePeginRequest(req)
	if err != nil {
		return nil, err
	}
	if args.depositor != c.from {
		return nil, fmt.Errorf(
			"depositor %s does not match signer %s", args.depositor.Hex(), c.from.Hex(),
		)
	}

	var out []interface{}
	if err := c.contract.Call(
		&bind.CallOpts{Context: ctx, From: c.from}, &out, submitPeginRequestMethod,
		args.depositor, args.depositorBtcPubKey, args.btcPopSignature,
		args.unsignedPegInTx, args.vaultProvider,
	); err != nil {
		return nil, fmt.Errorf("pegin request simulation failed: %w", err)
	}
	vaultId, err := unpackVaultId(out)
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainId)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(
		opts, submitPeginRequestMethod,
		args.depositor, args.depositorBtcPubKey, args.btcPopSignature,
		args.unsignedPegInTx, args.vaultProvider,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to submit pegin request: %w", err)
	}
	log.Debugf("pegin request submitted in tx %s, waiting for receipt", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for pegin request receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("pegin request tx %s reverted", tx.Hash().Hex())
	}

	return &ports.PeginReceipt{
		EthTxHash: tx.Hash().Hex(),
		VaultId:   vaultId,
	}, nil
}

func parsePeginRequest(req ports.PeginRequest) (*peginArgs, error) {
	if !common.IsHexAddress(req.Depositor) {
		return nil, fmt.Errorf("invalid depositor address %s", req.Depositor)
	}
	if !common.IsHexAddress(req.VaultProvider) {
		return nil, fmt.Errorf("invalid vault provider address %s", req.VaultProvider)
	}

	pubkey, err := hex.DecodeString(req.DepositorBtcPubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid depositor btc pubkey: %w", err)
	}
	if len(pubkey) != 32 {
		return nil, fmt.Errorf("invalid depositor btc pubkey length %d, must be 32", len(pubkey))
	}

	signature, err := base64.StdEncoding.DecodeString(req.PopSignature)
	if err != nil {
		return nil, fmt.Errorf("invalid proof of possession: %w", err)
	}

	tx, err := hex.DecodeString(req.UnsignedPeginTx)
	if err != nil {
		return nil, fmt.Errorf("invalid pegin tx: %w", err)
	}

	args := &peginArgs{
		depositor:       common.HexToAddress(req.Depositor),
		btcPopSignature: signature,
		unsignedPegInTx: tx,
		vaultProvider:   common.HexToAddress(req.VaultProvider),
	}
	copy(args.depositorBtcPubKey[:], pubkey)
	return args, nil
}

func unpackVaultId(out []interface{}) (string, error) {
	if len(out) != 1 {
		return "", fmt.Errorf("unexpected pegin request output %v", out)
	}
	vaultId, ok := out[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("unexpected vault id type %T", out[0])
	}
	return common.Hash(vaultId).Hex(), nil
}
