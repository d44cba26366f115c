package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseToken validates a hex address and returns its canonical form. The
// returned common.Address compares by value, so two spellings of the same
// address (any letter case, with or without checksum) are equal afterwards.
func ParseToken(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// MustParseToken is ParseToken for constants and tests.
func MustParseToken(s string) common.Address {
	a, err := ParseToken(s)
	if err != nil {
		panic(err)
	}
	return a
}

// PairCreated is a factory pair-creation event.
type PairCreated struct {
	Token0      common.Address
	Token1      common.Address
	Pair        common.Address
	BlockNumber uint64
	TxHash      common.Hash
}

// CounterLeg returns the leg that is not base. ok is false when neither leg
// is the base currency, or when both are.
func (p PairCreated) CounterLeg(base common.Address) (common.Address, bool) {
	switch {
	case p.Token0 == base && p.Token1 != base:
		return p.Token1, true
	case p.Token1 == base && p.Token0 != base:
		return p.Token0, true
	default:
		return common.Address{}, false
	}
}
