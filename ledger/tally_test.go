package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testContract(t *testing.T) *Contract {
	t.Helper()
	parsed, err := abi.JSON(bytes.NewReader([]byte(votingABI)))
	require.NoError(t, err)
	return NewContract(parsed, common.HexToAddress(contractAddr))
}

func TestCountForReadsContract(t *testing.T) {
	node := &fakeNode{callResult: common.LeftPadBytes(big.NewInt(5).Bytes(), 32)}
	tally := NewTallyReader(NewClient(node, time.Second), testContract(t), zerolog.Nop())

	require.Equal(t, uint64(5), tally.CountFor(context.Background(), 7))
}

func TestCountForAbsentBinding(t *testing.T) {
	node := &fakeNode{callResult: common.LeftPadBytes(big.NewInt(5).Bytes(), 32)}
	tally := NewTallyReader(NewClient(node, time.Second), nil, zerolog.Nop())

	require.Zero(t, tally.CountFor(context.Background(), 7))
}

func TestCountForAbsorbsCallFailure(t *testing.T) {
	node := &fakeNode{callErr: errors.New("connection refused")}
	tally := NewTallyReader(NewClient(node, time.Second), testContract(t), zerolog.Nop())

	require.Zero(t, tally.CountFor(context.Background(), 7))
}

func TestCountForAbsorbsGarbageResult(t *testing.T) {
	node := &fakeNode{callResult: []byte{0x01}}
	tally := NewTallyReader(NewClient(node, time.Second), testContract(t), zerolog.Nop())

	require.Zero(t, tally.CountFor(context.Background(), 7))
}

func TestVerifyReadsContract(t *testing.T) {
	node := &fakeNode{callResult: common.LeftPadBytes([]byte{1}, 32)}
	tally := NewTallyReader(NewClient(node, time.Second), testContract(t), zerolog.Nop())

	require.True(t, tally.Verify(context.Background(), contractAddr))
}

func TestVerifyDegradesToFalse(t *testing.T) {
	ctx := context.Background()

	absent := NewTallyReader(NewClient(&fakeNode{}, time.Second), nil, zerolog.Nop())
	require.False(t, absent.Verify(ctx, contractAddr))

	failing := &fakeNode{callErr: errors.New("connection refused")}
	tally := NewTallyReader(NewClient(failing, time.Second), testContract(t), zerolog.Nop())
	require.False(t, tally.Verify(ctx, contractAddr))

	require.False(t, tally.Verify(ctx, "not-an-address"))
}
