package domain

import "fmt"

const (
	StepUndefined DepositStep = iota
	StepSignPop
	StepSubmitPegin
	StepSignPayouts
	StepArtifactDownload
	StepBroadcastBtc
	StepCompleted
)

type DepositStep int

func (s DepositStep) String() string {
	switch s {
	case StepSignPop:
		return "SIGN_POP"
	case StepSubmitPegin:
		return "SUBMIT_PEGIN"
	case StepSignPayouts:
		return "SIGN_PAYOUTS"
	case StepArtifactDownload:
		return "ARTIFACT_DOWNLOAD"
	case StepBroadcastBtc:
		return "BROADCAST_BTC"
	case StepCompleted:
		return "COMPLETED"
	default:
		return "UNDEFINED"
	}
}

func (s DepositStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DepositStep) UnmarshalText(text []byte) error {
	for step := StepUndefined; step <= StepCompleted; step++ {
		if step.String() == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown deposit step %s", text)
}

// Stage is the position of a deposit in the flow. VaultIndex is meaningful
// only for the per vault steps SignPop and SubmitPegin.
type Stage struct {
	Code       DepositStep
	VaultIndex int
	Waiting    bool
	Ended      bool
	Failed     bool
}

type visualStepKey struct {
	step       DepositStep
	vaultIndex int
}

var (
	singleVaultSteps = map[visualStepKey]int{
		{StepSignPop, 0}:          1,
		{StepSubmitPegin, 0}:      2,
		{StepSignPayouts, 0}:      3,
		{StepArtifactDownload, 0}: 4,
		{StepBroadcastBtc, 0}:     5,
		{StepCompleted, 0}:        6,
	}
	multiVaultSteps = map[visualStepKey]int{
		{StepSignPop, 0}:      1,
		{StepSubmitPegin, 0}:  2,
		{StepSignPop, 1}:      3,
		{StepSubmitPegin, 1}:  4,
		{StepSignPayouts, 0}:  5,
		{StepBroadcastBtc, 0}: 6,
		{StepCompleted, 0}:    7,
	}
)

// VisualStep maps a step of the flow to its 1-based position as displayed
// to the user, 0 if the combination is not part of the flow.
func VisualStep(step DepositStep, vaultIndex, numOfVaults int) int {
	if step != StepSignPop && step != StepSubmitPegin {
		vaultIndex = 0
	}
	key := visualStepKey{step, vaultIndex}
	if numOfVaults > 1 {
		return multiVaultSteps[key]
	}
	return singleVaultSteps[key]
}
