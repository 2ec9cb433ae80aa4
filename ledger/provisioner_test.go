package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewAccountGeneratesDistinctKeypairs(t *testing.T) {
	p := NewProvisioner(newTestSender(&fakeNode{}), nil, nil, zerolog.Nop())

	a, err := p.NewAccount()
	require.NoError(t, err)
	b, err := p.NewAccount()
	require.NoError(t, err)

	require.NotEqual(t, a.Address, b.Address)

	restored, err := ParsePrivateKey(a.PrivateKeyHex())
	require.NoError(t, err)
	require.Equal(t, a.Address, crypto.PubkeyToAddress(restored.PublicKey))
}

func TestFundTransfersOneEther(t *testing.T) {
	node := &fakeNode{}
	operator, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := NewProvisioner(newTestSender(node), nil, operator, zerolog.Nop())

	voter := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	hash, err := p.Fund(context.Background(), voter)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, hash)

	sent := node.sentTxs()
	require.Len(t, sent, 1)
	require.Equal(t, voter, *sent[0].To())
	require.Equal(t, 0, sent[0].Value().Cmp(big.NewInt(params.Ether)))
	require.Equal(t, uint64(TransferGas), sent[0].Gas())
	require.Empty(t, sent[0].Data())
}

func TestFundRequiresOperatorKey(t *testing.T) {
	p := NewProvisioner(newTestSender(&fakeNode{}), nil, nil, zerolog.Nop())

	_, err := p.Fund(context.Background(), common.Address{})
	require.Error(t, err)
}

func TestRegisterOnContractSkipsWhenAbsent(t *testing.T) {
	node := &fakeNode{}
	operator, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := NewProvisioner(newTestSender(node), nil, operator, zerolog.Nop())

	hash, err := p.RegisterOnContract(context.Background(), common.Address{})
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, hash)
	require.Empty(t, node.sentTxs())
}

func TestRegisterOnContractSubmitsOperatorCall(t *testing.T) {
	node := &fakeNode{}
	operator, err := crypto.GenerateKey()
	require.NoError(t, err)
	contract := testContract(t)
	p := NewProvisioner(newTestSender(node), contract, operator, zerolog.Nop())

	voter := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	hash, err := p.RegisterOnContract(context.Background(), voter)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, hash)

	sent := node.sentTxs()
	require.Len(t, sent, 1)
	require.Equal(t, contract.Address(), *sent[0].To())
	require.NotEmpty(t, sent[0].Data())
}
