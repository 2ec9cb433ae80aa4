package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeNode stubs the JSON-RPC surface. The nonce counter advances only when
// a transaction is accepted, which is how a real node's pending count
// behaves for a single sender.
type fakeNode struct {
	mu    sync.Mutex
	nonce uint64
	sent  []*types.Transaction

	nonceErr    error
	gasPriceErr error
	chainIDErr  error
	estimateErr error
	sendErr     error

	gasPrice *big.Int
	chainID  *big.Int
	estimate uint64

	callResult []byte
	callErr    error
}

func (f *fakeNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonce, nil
}

func (f *fakeNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	if f.gasPrice == nil {
		return big.NewInt(20_000_000_000), nil
	}
	return f.gasPrice, nil
}

func (f *fakeNode) ChainID(ctx context.Context) (*big.Int, error) {
	if f.chainIDErr != nil {
		return nil, f.chainIDErr
	}
	if f.chainID == nil {
		return big.NewInt(1337), nil
	}
	return f.chainID, nil
}

func (f *fakeNode) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	if f.estimate == 0 {
		return 50000, nil
	}
	return f.estimate, nil
}

func (f *fakeNode) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeNode) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResult, nil
}

func (f *fakeNode) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func newTestSender(node Node) *Sender {
	return NewSender(NewClient(node, time.Second), zerolog.Nop())
}

func testCall() Call {
	return Call{
		To:          common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Data:        []byte{0x01, 0x02},
		FallbackGas: FallbackGasVote,
	}
}

func TestSendUsesEstimatedGas(t *testing.T) {
	node := &fakeNode{estimate: 72000}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash, err := sender.Send(context.Background(), testCall(), key, "")
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, hash)

	sent := node.sentTxs()
	require.Len(t, sent, 1)
	require.Equal(t, uint64(72000), sent[0].Gas())
}

func TestSendFallsBackWhenEstimationFails(t *testing.T) {
	node := &fakeNode{estimateErr: errors.New("execution reverted")}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	call := testCall()
	call.FallbackGas = FallbackGasCandidate

	_, err = sender.Send(context.Background(), call, key, "")
	require.NoError(t, err)

	sent := node.sentTxs()
	require.Len(t, sent, 1)
	require.Equal(t, uint64(FallbackGasCandidate), sent[0].Gas())
}

func TestSendHonorsGasCeiling(t *testing.T) {
	node := &fakeNode{}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	call := testCall()
	call.GasCeiling = TransferGas

	_, err = sender.Send(context.Background(), call, key, "")
	require.NoError(t, err)

	sent := node.sentTxs()
	require.Len(t, sent, 1)
	require.Equal(t, uint64(TransferGas), sent[0].Gas())
}

func TestSendAbsorbsGasPriceFailure(t *testing.T) {
	node := &fakeNode{gasPriceErr: errors.New("method not found")}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), testCall(), key, "")
	require.NoError(t, err)

	sent := node.sentTxs()
	require.Len(t, sent, 1)
	require.Zero(t, sent[0].GasPrice().Sign())
}

func TestSendAbsorbsChainIDFailure(t *testing.T) {
	node := &fakeNode{chainIDErr: errors.New("method not found")}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), testCall(), key, "")
	require.NoError(t, err)
	require.Len(t, node.sentTxs(), 1)
}

func TestSendAbortsOnNonceFailure(t *testing.T) {
	node := &fakeNode{nonceErr: errors.New("connection refused")}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), testCall(), key, "")
	require.Error(t, err)
	require.Empty(t, node.sentTxs())
}

func TestSendAbortsOnBroadcastFailure(t *testing.T) {
	node := &fakeNode{sendErr: errors.New("connection refused")}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), testCall(), key, "")
	require.Error(t, err)
	require.Empty(t, node.sentTxs())
}

func TestSendRejectsInvalidFromAddress(t *testing.T) {
	node := &fakeNode{}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), testCall(), key, "not-an-address")
	require.Error(t, err)
	require.Empty(t, node.sentTxs())
}

// Concurrent sends from one account must observe strictly increasing
// nonces. Without per-account serialization they would all read the same
// pending count and the node would reject all but one.
func TestSendSerializesPerAccount(t *testing.T) {
	node := &fakeNode{}
	sender := newTestSender(node)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sender.Send(context.Background(), testCall(), key, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sent := node.sentTxs()
	require.Len(t, sent, n)

	seen := make(map[uint64]bool)
	for _, tx := range sent {
		seen[tx.Nonce()] = true
	}
	for i := uint64(0); i < n; i++ {
		require.True(t, seen[i], "nonce %d was never used", i)
	}
}
