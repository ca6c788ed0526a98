package donation

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const maxAmountLength = 20

var (
	ErrInvalidTxHash = errors.New("txHash must be 64 hex characters")

	txHashPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
)

// Limits bounds the claimed amount, in nanoTON, both ends inclusive.
type Limits struct {
	MinNano *big.Int
	MaxNano *big.Int
}

func NewLimits(minTON, maxTON string) (Limits, error) {
	minNano, err := ParseTON(minTON)
	if err != nil {
		return Limits{}, fmt.Errorf("min donation: %w", err)
	}
	maxNano, err := ParseTON(maxTON)
	if err != nil {
		return Limits{}, fmt.Errorf("max donation: %w", err)
	}
	if minNano.Cmp(maxNano) > 0 {
		return Limits{}, errors.New("min donation exceeds max donation")
	}
	return Limits{MinNano: minNano, MaxNano: maxNano}, nil
}

// Claim is a user's unverified statement that they paid ClaimedNano in TxHash.
type Claim struct {
	UserID      int64
	TxHash      string
	ClaimedNano *big.Int
}

// NewClaim validates raw request input. The hash is lower-cased so the same
// transaction cannot be submitted twice under different spellings.
func NewClaim(userID int64, txHash, amount string, limits Limits) (Claim, error) {
	if !txHashPattern.MatchString(txHash) {
		return Claim{}, ErrInvalidTxHash
	}

	if len(amount) == 0 || len(amount) > maxAmountLength {
		return Claim{}, &InvalidAmountError{Amount: amount, Reason: "must be 1-20 characters"}
	}
	nano, err := ParseTON(amount)
	if err != nil {
		return Claim{}, &InvalidAmountError{Amount: amount, Reason: err.Error()}
	}
	if nano.Sign() <= 0 {
		return Claim{}, &InvalidAmountError{Amount: amount, Reason: "must be positive"}
	}
	if limits.MinNano != nil && nano.Cmp(limits.MinNano) < 0 {
		return Claim{}, &InvalidAmountError{Amount: amount, Reason: "below minimum of " + FormatTON(limits.MinNano) + " TON"}
	}
	if limits.MaxNano != nil && nano.Cmp(limits.MaxNano) > 0 {
		return Claim{}, &InvalidAmountError{Amount: amount, Reason: "above maximum of " + FormatTON(limits.MaxNano) + " TON"}
	}

	return Claim{
		UserID:      userID,
		TxHash:      strings.ToLower(txHash),
		ClaimedNano: nano,
	}, nil
}

// MinAcceptedNano is the smallest on-chain value accepted for a claim:
// the claimed amount minus 1% (integer division).
func MinAcceptedNano(claimedNano *big.Int) *big.Int {
	tolerance := new(big.Int).Quo(claimedNano, big.NewInt(100))
	return new(big.Int).Sub(claimedNano, tolerance)
}
