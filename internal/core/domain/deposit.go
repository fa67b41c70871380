package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxVaults is the number of peg-ins a single deposit can fund at once.
	MaxVaults = 2

	splitStrategy = "SPLIT"
)

type ClaimPayout struct {
	ClaimerPubkey string `json:"claimerPubkey"`
	ClaimTx       string `json:"claimTx"`
	PayoutTx      string `json:"payoutTx"`
}

type Vault struct {
	Index            int
	Amount           uint64
	PopSignature     string
	PeginTxid        string
	PeginTx          string
	EthTxHash        string
	VaultId          string
	Payouts          []ClaimPayout
	PayoutSignatures map[string]string
}

func (v Vault) IsSubmitted() bool {
	return len(v.EthTxHash) > 0
}

type Deposit struct {
	Id                 string
	Depositor          string
	DepositorBtcPubkey string
	VaultProvider      string
	FeeRate            float64
	Strategy           string
	SplitTx            string
	Stage              Stage
	Vaults             []Vault
	BroadcastTxids     []string
	Error              string
	CreatedAt          int64
	UpdatedAt          int64
	Version            uint
	changes            []DepositEvent
}

func NewDeposit() *Deposit {
	return &Deposit{
		Id:      uuid.New().String(),
		changes: make([]DepositEvent, 0),
	}
}

func NewDepositFromEvents(events []DepositEvent) *Deposit {
	d := &Deposit{}

	for _, event := range events {
		d.On(event, true)
	}

	d.changes = append([]DepositEvent{}, events...)

	return d
}

func (d *Deposit) Events() []DepositEvent {
	return d.changes
}

func (d *Deposit) On(event DepositEvent, replayed bool) {
	switch e := event.(type) {
	case DepositCreated:
		d.Id = e.Id
		d.Depositor = e.Depositor
		d.DepositorBtcPubkey = e.DepositorBtcPubkey
		d.VaultProvider = e.VaultProvider
		d.FeeRate = e.FeeRate
		d.Strategy = e.Strategy
		d.Vaults = make([]Vault, 0, len(e.Amounts))
		for i, amount := range e.Amounts {
			d.Vaults = append(d.Vaults, Vault{Index: i, Amount: amount})
		}
		d.Stage = Stage{Code: StepSignPop}
		d.CreatedAt = e.Timestamp
		d.UpdatedAt = e.Timestamp
	case PopSigned:
		d.Vaults[e.VaultIndex].PopSignature = e.Signature
		d.Stage = Stage{Code: StepSubmitPegin, VaultIndex: e.VaultIndex}
		d.UpdatedAt = e.Timestamp
	case PeginSubmitted:
		vault := &d.Vaults[e.VaultIndex]
		vault.PeginTxid = e.PeginTxid
		vault.PeginTx = e.PeginTx
		vault.EthTxHash = e.EthTxHash
		vault.VaultId = e.VaultId
		if next := e.VaultIndex + 1; next < len(d.Vaults) {
			d.Stage = Stage{Code: StepSignPop, VaultIndex: next}
		} else {
			d.Stage = Stage{Code: StepSignPayouts}
		}
		d.UpdatedAt = e.Timestamp
	case PayoutsWaitingStarted:
		d.Stage.Waiting = true
		d.UpdatedAt = e.Timestamp
	case PayoutsWaitingEnded:
		for i, payouts := range e.Payouts {
			d.Vaults[i].Payouts = append([]ClaimPayout{}, payouts...)
		}
		d.Stage.Waiting = false
		d.UpdatedAt = e.Timestamp
	case PayoutsSigned:
		for i, sigs := range e.Signatures {
			d.Vaults[i].PayoutSignatures = sigs
		}
		if len(d.Vaults) > 1 {
			d.Stage = Stage{Code: StepBroadcastBtc}
		} else {
			d.Stage = Stage{Code: StepArtifactDownload}
		}
		d.UpdatedAt = e.Timestamp
	case ArtifactsDownloaded:
		d.Stage = Stage{Code: StepBroadcastBtc}
		d.UpdatedAt = e.Timestamp
	case BtcBroadcasted:
		d.BroadcastTxids = append([]string{}, e.Txids...)
		d.Stage = Stage{Code: StepCompleted, Ended: true}
		d.UpdatedAt = e.Timestamp
	case DepositFailed:
		d.Stage.Failed = true
		d.Stage.Waiting = false
		d.Error = e.Err
		d.UpdatedAt = e.Timestamp
	case DepositRetried:
		d.Stage.Failed = false
		d.Error = ""
		if e.Restart {
			for i := range d.Vaults {
				d.Vaults[i] = Vault{Index: i, Amount: d.Vaults[i].Amount}
			}
			d.Strategy = e.Strategy
			d.SplitTx = ""
			d.Stage = Stage{Code: StepSignPop}
		}
		d.UpdatedAt = e.Timestamp
	case SplitPrepared:
		d.SplitTx = e.SplitTx
		d.UpdatedAt = e.Timestamp
	}

	if replayed {
		d.Version++
	}
}

func (d *Deposit) Start(
	depositor, depositorBtcPubkey, vaultProvider string,
	amounts []uint64, feeRate float64, strategy string,
) ([]DepositEvent, error) {
	empty := Stage{}
	if d.Stage != empty {
		return nil, fmt.Errorf("not in a valid stage to start deposit")
	}
	if len(amounts) <= 0 || len(amounts) > MaxVaults {
		return nil, fmt.Errorf("invalid number of vaults %d, must be in range [1, %d]", len(amounts), MaxVaults)
	}
	for i, amount := range amounts {
		if amount == 0 {
			return nil, fmt.Errorf("missing amount for vault %d", i)
		}
	}
	if len(depositor) <= 0 {
		return nil, fmt.Errorf("missing depositor")
	}
	if len(depositorBtcPubkey) <= 0 {
		return nil, fmt.Errorf("missing depositor btc pubkey")
	}
	if len(vaultProvider) <= 0 {
		return nil, fmt.Errorf("missing vault provider")
	}

	event := DepositCreated{
		Id:                 d.Id,
		Depositor:          depositor,
		DepositorBtcPubkey: depositorBtcPubkey,
		VaultProvider:      vaultProvider,
		Amounts:            append([]uint64{}, amounts...),
		FeeRate:            feeRate,
		Strategy:           strategy,
		Timestamp:          time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// PrepareSplit records the split transaction of a SPLIT deposit, before any
// proof of possession is signed.
func (d *Deposit) PrepareSplit(splitTx string) ([]DepositEvent, error) {
	if !d.isAt(StepSignPop, 0) || len(d.Vaults[0].PopSignature) > 0 {
		return nil, fmt.Errorf("not in a valid stage to prepare split transaction")
	}
	if d.Strategy != splitStrategy {
		return nil, fmt.Errorf("split transaction not expected with strategy %s", d.Strategy)
	}
	if len(splitTx) <= 0 {
		return nil, fmt.Errorf("missing split transaction")
	}

	event := SplitPrepared{
		Id:        d.Id,
		SplitTx:   splitTx,
		Timestamp: time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// SignPop records the wallet's proof of possession for the current vault.
func (d *Deposit) SignPop(vaultIndex int, signature string) ([]DepositEvent, error) {
	if !d.isAt(StepSignPop, vaultIndex) {
		return nil, fmt.Errorf("not in a valid stage to sign proof of possession")
	}
	if len(signature) <= 0 {
		return nil, fmt.Errorf("missing proof of possession signature")
	}

	event := PopSigned{
		Id:         d.Id,
		VaultIndex: vaultIndex,
		Signature:  signature,
		Timestamp:  time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// SubmitPegin records the successful ETH submission of the current vault's
// peg-in request.
func (d *Deposit) SubmitPegin(
	vaultIndex int, peginTxid, peginTx, ethTxHash, vaultId string,
) ([]DepositEvent, error) {
	if !d.isAt(StepSubmitPegin, vaultIndex) {
		return nil, fmt.Errorf("not in a valid stage to submit pegin")
	}
	if len(ethTxHash) <= 0 {
		return nil, fmt.Errorf("missing eth transaction receipt")
	}
	if len(peginTxid) <= 0 || len(peginTx) <= 0 {
		return nil, fmt.Errorf("missing pegin transaction")
	}

	event := PeginSubmitted{
		Id:         d.Id,
		VaultIndex: vaultIndex,
		PeginTxid:  peginTxid,
		PeginTx:    peginTx,
		EthTxHash:  ethTxHash,
		VaultId:    vaultId,
		Timestamp:  time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// StartWaiting enters the sub-state where the vault provider is polled for
// the payout transactions to co-sign.
func (d *Deposit) StartWaiting() ([]DepositEvent, error) {
	if d.Stage.Code != StepSignPayouts || d.IsFailed() {
		return nil, fmt.Errorf("not in a valid stage to wait for payouts")
	}
	if d.Stage.Waiting {
		return nil, fmt.Errorf("already waiting for payouts")
	}

	event := PayoutsWaitingStarted{
		Id:        d.Id,
		Timestamp: time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

func (d *Deposit) StopWaiting(payouts [][]ClaimPayout) ([]DepositEvent, error) {
	if d.Stage.Code != StepSignPayouts || d.IsFailed() || !d.Stage.Waiting {
		return nil, fmt.Errorf("not in a valid stage to stop waiting for payouts")
	}
	if len(payouts) != len(d.Vaults) {
		return nil, fmt.Errorf(
			"got payouts for %d vaults, expected %d", len(payouts), len(d.Vaults),
		)
	}
	for i, p := range payouts {
		if len(p) <= 0 {
			return nil, fmt.Errorf("missing payout transactions for vault %d", i)
		}
	}

	event := PayoutsWaitingEnded{
		Id:        d.Id,
		Payouts:   payouts,
		Timestamp: time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// SignPayouts requires the depositor's signature for every claimer of every
// vault, once all payout transactions have been collected.
func (d *Deposit) SignPayouts(signatures []map[string]string) ([]DepositEvent, error) {
	if d.Stage.Code != StepSignPayouts || d.IsFailed() || d.Stage.Waiting {
		return nil, fmt.Errorf("not in a valid stage to sign payouts")
	}
	if len(signatures) != len(d.Vaults) {
		return nil, fmt.Errorf(
			"got signatures for %d vaults, expected %d", len(signatures), len(d.Vaults),
		)
	}
	for i, vault := range d.Vaults {
		if len(vault.Payouts) <= 0 {
			return nil, fmt.Errorf("missing payout transactions for vault %d", i)
		}
		for _, p := range vault.Payouts {
			if len(signatures[i][p.ClaimerPubkey]) <= 0 {
				return nil, fmt.Errorf(
					"missing payout signature for claimer %s of vault %d", p.ClaimerPubkey, i,
				)
			}
		}
	}

	event := PayoutsSigned{
		Id:         d.Id,
		Signatures: signatures,
		Timestamp:  time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

func (d *Deposit) ConfirmArtifacts() ([]DepositEvent, error) {
	if d.Stage.Code != StepArtifactDownload || d.IsFailed() {
		return nil, fmt.Errorf("not in a valid stage to confirm artifacts download")
	}

	event := ArtifactsDownloaded{
		Id:        d.Id,
		Timestamp: time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

func (d *Deposit) Broadcast(txids []string) ([]DepositEvent, error) {
	if d.Stage.Code != StepBroadcastBtc || d.IsFailed() {
		return nil, fmt.Errorf("not in a valid stage to broadcast")
	}
	if len(txids) <= 0 {
		return nil, fmt.Errorf("missing broadcasted txids")
	}

	event := BtcBroadcasted{
		Id:        d.Id,
		Txids:     append([]string{}, txids...),
		Timestamp: time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// Fail moves the deposit to its error sub-state, the step is kept so that
// the flow can be retried from where it stopped.
func (d *Deposit) Fail(err error) []DepositEvent {
	if d.IsFailed() || d.IsCompleted() {
		return nil
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	event := DepositFailed{
		Id:         d.Id,
		Step:       d.Stage.Code,
		VaultIndex: d.Stage.VaultIndex,
		Err:        msg,
		Timestamp:  time.Now().Unix(),
	}
	d.raise(event)

	return []DepositEvent{event}
}

// Retry clears the error. If no peg-in was submitted yet the flow restarts
// from the first vault with the given allocation strategy.
func (d *Deposit) Retry(strategy string) ([]DepositEvent, error) {
	if !d.IsFailed() {
		return nil, fmt.Errorf("not in a valid stage to retry")
	}

	event := DepositRetried{
		Id:        d.Id,
		Restart:   d.CanRestart(),
		Timestamp: time.Now().Unix(),
	}
	if event.Restart {
		event.Strategy = strategy
	}
	d.raise(event)

	return []DepositEvent{event}, nil
}

// CanRestart returns whether no peg-in request was submitted yet.
func (d *Deposit) CanRestart() bool {
	for _, v := range d.Vaults {
		if v.IsSubmitted() {
			return false
		}
	}
	return true
}

// CanCloseModal returns whether the user can dismiss the flow, that is
// once nothing needs the user's presence anymore.
func (d *Deposit) CanCloseModal() bool {
	return d.IsFailed() ||
		d.IsCompleted() ||
		d.Stage.Code == StepArtifactDownload ||
		(d.Stage.Waiting && d.Stage.Code >= StepSignPayouts)
}

func (d *Deposit) VisualStep() int {
	return VisualStep(d.Stage.Code, d.Stage.VaultIndex, len(d.Vaults))
}

func (d *Deposit) IsStarted() bool {
	empty := Stage{}
	return !d.IsFailed() && (d.Stage != empty && !d.IsCompleted())
}

func (d *Deposit) IsCompleted() bool {
	return !d.IsFailed() && d.Stage.Code == StepCompleted && d.Stage.Ended
}

func (d *Deposit) IsFailed() bool {
	return d.Stage.Failed
}

func (d *Deposit) Amounts() []uint64 {
	amounts := make([]uint64, 0, len(d.Vaults))
	for _, v := range d.Vaults {
		amounts = append(amounts, v.Amount)
	}
	return amounts
}

func (d *Deposit) isAt(step DepositStep, vaultIndex int) bool {
	return d.Stage.Code == step && !d.IsFailed() &&
		d.Stage.VaultIndex == vaultIndex &&
		vaultIndex >= 0 && vaultIndex < len(d.Vaults)
}

func (d *Deposit) raise(event DepositEvent) {
	if d.changes == nil {
		d.changes = make([]DepositEvent, 0)
	}
	d.changes = append(d.changes, event)
	d.On(event, false)
}
