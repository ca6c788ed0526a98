package donation

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrDonationsDisabled    = errors.New("TON donations are disabled")
	ErrDuplicateTransaction = errors.New("transaction already processed")
)

type InvalidAmountError struct {
	Amount string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Amount, e.Reason)
}

// VerificationFailedError wraps anything that kept the indexer from
// confirming the transaction. Status is the upstream HTTP status, 0 if none.
type VerificationFailedError struct {
	Hash   string
	Status int
	Err    error
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("could not verify transaction %s: %v", e.Hash, e.Err)
}

func (e *VerificationFailedError) Unwrap() error {
	return e.Err
}

type DestinationMismatchError struct {
	Hash        string
	Destination string
}

func (e *DestinationMismatchError) Error() string {
	return fmt.Sprintf("transaction %s was not sent to the donation wallet", e.Hash)
}

type InsufficientAmountError struct {
	ActualNano      *big.Int
	MinRequiredNano *big.Int
}

func (e *InsufficientAmountError) Error() string {
	return fmt.Sprintf("insufficient amount: got %s TON, need at least %s TON",
		FormatTON(e.ActualNano), FormatTON(e.MinRequiredNano))
}

// Reason returns a short label for err, used in logs and metrics.
func Reason(err error) string {
	var (
		invalidAmount *InvalidAmountError
		verification  *VerificationFailedError
		mismatch      *DestinationMismatchError
		insufficient  *InsufficientAmountError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDonationsDisabled):
		return "disabled"
	case errors.Is(err, ErrDuplicateTransaction):
		return "duplicate"
	case errors.As(err, &invalidAmount):
		return "invalid_amount"
	case errors.As(err, &verification):
		return "verification_failed"
	case errors.As(err, &mismatch):
		return "destination_mismatch"
	case errors.As(err, &insufficient):
		return "insufficient_amount"
	default:
		return "internal"
	}
}
