package donation

import (
	"errors"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/tlb"
)

const tonDecimals = 9

var (
	errEmptyAmount  = errors.New("amount is empty")
	errAmountSyntax = errors.New("amount must be a plain decimal number")
)

// ParseTON converts a decimal TON string into nanoTON, rounding half up at the
// ninth fractional digit. Signs, exponents and separators are rejected.
func ParseTON(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errEmptyAmount
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, errAmountSyntax
	}
	if hasDot && frac == "" {
		return nil, errAmountSyntax
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, errAmountSyntax
	}

	roundUp := false
	if len(frac) > tonDecimals {
		roundUp = frac[tonDecimals] >= '5'
		frac = frac[:tonDecimals]
	}
	frac += strings.Repeat("0", tonDecimals-len(frac))

	nano, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, errAmountSyntax
	}
	if roundUp {
		nano.Add(nano, big.NewInt(1))
	}
	return nano, nil
}

// FormatTON renders nanoTON as a TON decimal string without trailing zeros.
func FormatTON(nano *big.Int) string {
	if nano == nil {
		return "0"
	}
	return tlb.FromNanoTON(nano).String()
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
