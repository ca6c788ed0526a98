package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

const basechainPrefix = "0:"

// NormalizeAddress reduces a TON address to a comparable key: the lower-cased
// account id without the basechain prefix. User-friendly (base64) forms are
// decoded to raw first; anything that fails to decode is compared as-is.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	if !strings.Contains(addr, ":") {
		if parsed, err := address.ParseAddr(addr); err == nil {
			addr = parsed.StringRaw()
		}
	}

	return strings.TrimPrefix(strings.ToLower(addr), basechainPrefix)
}

// SameAddress reports whether a and b normalize to the same key.
func SameAddress(a, b string) bool {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	return na != "" && na == nb
}

var ErrInvalidAddress = errors.New("invalid TON address")

// ParseWalletAddress accepts a user-friendly (base64url, checksummed) or raw
// "wc:hex" account address.
func ParseWalletAddress(addr string) (*address.Address, error) {
	addr = strings.TrimSpace(addr)
	if len(addr) < 10 || len(addr) > 100 {
		return nil, ErrInvalidAddress
	}

	var (
		parsed *address.Address
		err    error
	)
	if strings.Contains(addr, ":") {
		parsed, err = address.ParseRawAddr(addr)
	} else {
		parsed, err = address.ParseAddr(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return parsed, nil
}
