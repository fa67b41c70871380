package pegin

import "fmt"

var (
	ErrInsufficientFunds     = fmt.Errorf("insufficient funds")
	ErrMalformedTransaction  = fmt.Errorf("malformed unfunded transaction")
	ErrUnsupportedScriptType = fmt.Errorf("unsupported script type, expected one of p2wpkh, p2wsh or p2tr")
	ErrMissingWitnessScript  = fmt.Errorf("missing witness script for p2wsh input")
	ErrInvalidInternalKey    = fmt.Errorf("invalid taproot internal key, expected 32 bytes")
	ErrAllocationInfeasible  = fmt.Errorf("allocation infeasible")
	ErrInvalidSelection      = fmt.Errorf("selection does not fund the vault output")
)
