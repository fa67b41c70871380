package domain

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeDepositCreated
	EventTypePopSigned
	EventTypePeginSubmitted
	EventTypePayoutsWaitingStarted
	EventTypePayoutsWaitingEnded
	EventTypePayoutsSigned
	EventTypeArtifactsDownloaded
	EventTypeBtcBroadcasted
	EventTypeDepositFailed
	EventTypeDepositRetried
	EventTypeSplitPrepared
)

type DepositEvent interface {
	GetType() EventType
}

func (e DepositCreated) GetType() EventType        { return EventTypeDepositCreated }
func (e PopSigned) GetType() EventType             { return EventTypePopSigned }
func (e PeginSubmitted) GetType() EventType        { return EventTypePeginSubmitted }
func (e PayoutsWaitingStarted) GetType() EventType { return EventTypePayoutsWaitingStarted }
func (e PayoutsWaitingEnded) GetType() EventType   { return EventTypePayoutsWaitingEnded }
func (e PayoutsSigned) GetType() EventType         { return EventTypePayoutsSigned }
func (e ArtifactsDownloaded) GetType() EventType   { return EventTypeArtifactsDownloaded }
func (e BtcBroadcasted) GetType() EventType        { return EventTypeBtcBroadcasted }
func (e DepositFailed) GetType() EventType         { return EventTypeDepositFailed }
func (e DepositRetried) GetType() EventType        { return EventTypeDepositRetried }
func (e SplitPrepared) GetType() EventType         { return EventTypeSplitPrepared }

type DepositCreated struct {
	Id                 string
	Depositor          string
	DepositorBtcPubkey string
	VaultProvider      string
	Amounts            []uint64
	FeeRate            float64
	Strategy           string
	Timestamp          int64
}

type PopSigned struct {
	Id         string
	VaultIndex int
	Signature  string
	Timestamp  int64
}

type PeginSubmitted struct {
	Id         string
	VaultIndex int
	PeginTxid  string
	PeginTx    string
	EthTxHash  string
	VaultId    string
	Timestamp  int64
}

type PayoutsWaitingStarted struct {
	Id        string
	Timestamp int64
}

type PayoutsWaitingEnded struct {
	Id string
	// Payouts holds the claim and payout transactions of every vault,
	// indexed by vault.
	Payouts   [][]ClaimPayout
	Timestamp int64
}

type PayoutsSigned struct {
	Id string
	// Signatures holds, for every vault, the depositor payout signatures
	// indexed by claimer pubkey.
	Signatures []map[string]string
	Timestamp  int64
}

type ArtifactsDownloaded struct {
	Id        string
	Timestamp int64
}

type BtcBroadcasted struct {
	Id        string
	Txids     []string
	Timestamp int64
}

type DepositFailed struct {
	Id         string
	Step       DepositStep
	VaultIndex int
	Err        string
	Timestamp  int64
}

type DepositRetried struct {
	Id string
	// Restart is set when nothing was submitted yet and the flow starts
	// over with a new allocation plan.
	Restart   bool
	Strategy  string
	Timestamp int64
}

// SplitPrepared records the unsigned split transaction funding the vaults of
// a SPLIT deposit. It is signed and broadcast before the peg-ins.
type SplitPrepared struct {
	Id        string
	SplitTx   string
	Timestamp int64
}
