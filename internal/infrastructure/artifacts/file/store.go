package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vault-network/vault/internal/core/domain"
	"github.com/vault-network/vault/internal/core/ports"
)

const artifactsDir = "artifacts"

type artifactStore struct {
	datadir string
}

type vaultArtifacts struct {
	VaultIndex int                  `json:"vaultIndex"`
	VaultId    string               `json:"vaultId"`
	Amount     uint64               `json:"amount"`
	PeginTxid  string               `json:"peginTxid"`
	PeginTx    string               `json:"peginTx"`
	EthTxHash  string               `json:"ethTxHash"`
	Payouts    []domain.ClaimPayout `json:"payouts"`
	Signatures map[string]string    `json:"payoutSignatures"`
}

type artifacts struct {
	DepositId          string           `json:"depositId"`
	Depositor          string           `json:"depositor"`
	DepositorBtcPubkey string           `json:"depositorBtcPubkey"`
	VaultProvider      string           `json:"vaultProvider"`
	Vaults             []vaultArtifacts `json:"vaults"`
	CreatedAt          int64            `json:"createdAt"`
}

// NewArtifactStore stores the recovery artifacts of every deposit as a JSON
// file under the given base directory.
func NewArtifactStore(baseDir string) (ports.ArtifactStore, error) {
	if len(baseDir) <= 0 {
		return nil, fmt.Errorf("missing base directory")
	}

	datadir := filepath.Join(cleanAndExpandPath(baseDir), artifactsDir)
	if err := makeDirectoryIfNotExists(datadir); err != nil {
		return nil, fmt.Errorf("failed to initialize datadir: %s", err)
	}
	return &artifactStore{datadir}, nil
}

func (s *artifactStore) Save(_ context.Context, deposit *domain.Deposit) (string, error) {
	if deposit == nil {
		return "", fmt.Errorf("missing deposit")
	}

	data := artifacts{
		DepositId:          deposit.Id,
		Depositor:          deposit.Depositor,
		DepositorBtcPubkey: deposit.DepositorBtcPubkey,
		VaultProvider:      deposit.VaultProvider,
		Vaults:             make([]vaultArtifacts, 0, len(deposit.Vaults)),
		CreatedAt:          time.Now().Unix(),
	}
	for _, v := range deposit.Vaults {
		if !v.IsSubmitted() || len(v.Payouts) <= 0 {
			return "", fmt.Errorf("vault %d is missing payout transactions", v.Index)
		}
		data.Vaults = append(data.Vaults, vaultArtifacts{
			VaultIndex: v.Index,
			VaultId:    v.VaultId,
			Amount:     v.Amount,
			PeginTxid:  v.PeginTxid,
			PeginTx:    v.PeginTx,
			EthTxHash:  v.EthTxHash,
			Payouts:    v.Payouts,
			Signatures: v.PayoutSignatures,
		})
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}

	path := s.filePath(deposit.Id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *artifactStore) Get(_ context.Context, depositId string) ([]byte, error) {
	if len(depositId) <= 0 {
		return nil, fmt.Errorf("missing deposit id")
	}
	buf, err := os.ReadFile(s.filePath(depositId))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no artifacts found for deposit %s", depositId)
		}
		return nil, err
	}
	return buf, nil
}

func (s *artifactStore) filePath(depositId string) string {
	return filepath.Join(s.datadir, fmt.Sprintf("%s.json", filepath.Base(depositId)))
}
