package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AccountID is a CAIP-10 chain-namespaced account identifier. Only the
// eip155 namespace is supported; the canonical form is
// "eip155:<chainId>:<0x-prefixed 40-hex address>".
type AccountID struct {
	ChainID uint64
	Address string
}

const caip10Namespace = "eip155"

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// NewAccountID builds an AccountID after validating the address shape.
func NewAccountID(chainID uint64, address string) (AccountID, error) {
	if !addressRe.MatchString(address) {
		return AccountID{}, Errorf(ErrInvalidAccount, "invalid address: %q", address)
	}
	return AccountID{ChainID: chainID, Address: address}, nil
}

// ParseAccountID parses the canonical string form.
func ParseAccountID(s string) (AccountID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != caip10Namespace {
		return AccountID{}, Errorf(ErrInvalidAccount, "not an eip155 account id: %q", s)
	}
	chainID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return AccountID{}, Errorf(ErrInvalidAccount, "bad chain id in %q: %v", s, err)
	}
	return NewAccountID(chainID, parts[2])
}

// String returns the canonical CAIP-10 form.
func (a AccountID) String() string {
	return fmt.Sprintf("%s:%d:%s", caip10Namespace, a.ChainID, a.Address)
}

func (a AccountID) IsZero() bool {
	return a.Address == ""
}
