package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountIDRoundTrip(t *testing.T) {
	account, err := NewAccountID(8453, "0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	require.NoError(t, err)
	assert.Equal(t, "eip155:8453:0x036CbD53842c5426634e7929541eC2318f3dCF7e", account.String())

	parsed, err := ParseAccountID(account.String())
	require.NoError(t, err)
	assert.Equal(t, account, parsed)
}

func TestParseAccountIDRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"eip155:8453",
		"cosmos:cosmoshub-4:cosmos1abc",
		"eip155:x:0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		"eip155:1:036CbD53842c5426634e7929541eC2318f3dCF7e",
		"eip155:1:0x036C",
	} {
		_, err := ParseAccountID(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestNewAccountIDValidatesAddress(t *testing.T) {
	_, err := NewAccountID(1, "0xnothex")
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrInvalidAccount, e.Code)
}

func TestNetworkClassification(t *testing.T) {
	assert.Equal(t, uint64(1), NetworkEthereum.ChainID())
	assert.Equal(t, uint64(8453), NetworkBase.ChainID())
	assert.False(t, NetworkEthereum.IsRollup())
	assert.True(t, NetworkBase.IsRollup())
	assert.True(t, NetworkBaseSepolia.IsTestnet())
	assert.False(t, Network("solana").IsSupported())

	n, ok := NetworkByChainID(42161)
	require.True(t, ok)
	assert.Equal(t, NetworkArbitrum, n)
}

func TestUserMessageCollapsesErrors(t *testing.T) {
	assert.Equal(t, MsgInsufficient, UserMessage(Errorf(ErrInsufficientFunds, "x")))
	assert.Equal(t, MsgReadFailed, UserMessage(Errorf(ErrProtocolViolation, "x")))
	assert.Equal(t, MsgReadFailed, UserMessage(Errorf(ErrSessionTimeout, "x")))
	assert.Equal(t, MsgReadFailed, UserMessage(assert.AnError))
}
