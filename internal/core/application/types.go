package application

import (
	"context"
	"time"

	"github.com/vault-network/vault/common"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/domain"
)

type Service interface {
	Start() error
	Stop()
	GetInfo(ctx context.Context) (*ServiceInfo, error)
	GetFeeRates(ctx context.Context) (*pegin.FeeRateSchedule, error)
	EstimatePeginFee(ctx context.Context, amount uint64, feeRate float64) (uint64, error)
	PlanAllocation(
		ctx context.Context, amounts []uint64, feeRate float64,
	) (*pegin.AllocationPlan, error)
	BuildPeginTx(ctx context.Context, amount uint64, feeRate float64) (*pegin.PeginTx, error)
	StartDeposit(ctx context.Context, req DepositRequest) (string, error)
	GetDeposit(ctx context.Context, id string) (*DepositState, error)
	ListDeposits(ctx context.Context, depositor string) ([]DepositState, error)
	Subscribe(ctx context.Context, id string) (<-chan DepositState, func(), error)
	RetryDeposit(ctx context.Context, id string) error
	ConfirmArtifacts(ctx context.Context, id string) error
	GetArtifacts(ctx context.Context, id string) ([]byte, error)
	CloseDeposit(ctx context.Context, id string) error
}

type Config struct {
	Network common.Network
	// VaultProvider is the ETH address of the vault provider, VaultProviderPubkey
	// its x-only BTC key.
	VaultProvider        string
	VaultProviderPubkey  string
	VaultKeepers         []string
	UniversalChallengers []string
	// PollingInterval and PayoutsTimeout bound the wait for the vault provider
	// to prepare the payout transactions.
	PollingInterval time.Duration
	PayoutsTimeout  time.Duration
}

type ServiceInfo struct {
	Network             string
	Address             string
	PublicKey           string
	VaultProvider       string
	VaultProviderPubkey string
	VaultKeepers        []string
	FeeRates            pegin.FeeRateSchedule
}

type DepositRequest struct {
	// Depositor is the ETH address the vaults are minted to.
	Depositor string
	Amounts   []uint64
	// FeeRate in sat/vbyte, the default of the schedule if zero.
	FeeRate float64
}

type VaultState struct {
	Index     int    `json:"index"`
	Amount    uint64 `json:"amount"`
	PeginTxid string `json:"peginTxid,omitempty"`
	EthTxHash string `json:"ethTxHash,omitempty"`
	VaultId   string `json:"vaultId,omitempty"`
	Signed    bool   `json:"payoutsSigned"`
}

// DepositState is the view of a deposit pushed to the UI.
type DepositState struct {
	Id             string       `json:"id"`
	Depositor      string       `json:"depositor"`
	Step           string       `json:"step"`
	VaultIndex     int          `json:"vaultIndex"`
	VisualStep     int          `json:"visualStep"`
	TotalSteps     int          `json:"totalSteps"`
	Waiting        bool         `json:"isWaiting"`
	Failed         bool         `json:"failed"`
	Completed      bool         `json:"completed"`
	Error          string       `json:"error,omitempty"`
	CanClose       bool         `json:"canClose"`
	CanRestart     bool         `json:"canRestart"`
	Strategy       string       `json:"strategy"`
	FeeRate        float64      `json:"feeRate"`
	Vaults         []VaultState `json:"vaults"`
	BroadcastTxids []string     `json:"broadcastTxids,omitempty"`
	UpdatedAt      int64        `json:"updatedAt"`
	version        uint
}

func newDepositState(d domain.Deposit) DepositState {
	vaults := make([]VaultState, 0, len(d.Vaults))
	for _, v := range d.Vaults {
		vaults = append(vaults, VaultState{
			Index:     v.Index,
			Amount:    v.Amount,
			PeginTxid: v.PeginTxid,
			EthTxHash: v.EthTxHash,
			VaultId:   v.VaultId,
			Signed:    len(v.PayoutSignatures) > 0,
		})
	}
	totalSteps := domain.VisualStep(domain.StepCompleted, 0, len(d.Vaults))

	return DepositState{
		Id:             d.Id,
		Depositor:      d.Depositor,
		Step:           d.Stage.Code.String(),
		VaultIndex:     d.Stage.VaultIndex,
		VisualStep:     d.VisualStep(),
		TotalSteps:     totalSteps,
		Waiting:        d.Stage.Waiting,
		Failed:         d.IsFailed(),
		Completed:      d.IsCompleted(),
		Error:          d.Error,
		CanClose:       d.CanCloseModal(),
		CanRestart:     d.IsFailed() && d.CanRestart(),
		Strategy:       d.Strategy,
		FeeRate:        d.FeeRate,
		Vaults:         vaults,
		BroadcastTxids: d.BroadcastTxids,
		UpdatedAt:      d.UpdatedAt,
		version:        d.Version,
	}
}
