package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultRPCTimeout bounds every individual node call. The node is a remote
// collaborator; a hung call must not hold a request goroutine forever.
const DefaultRPCTimeout = 15 * time.Second

// Node is the subset of the JSON-RPC surface the orchestrator uses.
// *ethclient.Client satisfies it; tests substitute a stub.
type Node interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client maintains a session to a ledger node. It does not retry; retry
// policy belongs to callers.
type Client struct {
	node    Node
	timeout time.Duration
}

// Dial connects to the node's JSON-RPC endpoint.
func Dial(endpoint string, timeout time.Duration) (*Client, error) {
	eth, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node at %s: %v", endpoint, err)
	}
	return NewClient(eth, timeout), nil
}

func NewClient(node Node, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	return &Client{node: node, timeout: timeout}
}

// ParseAddress validates a hex account identifier and returns its
// checksummed form.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid ledger address %q", s)
	}
	return common.HexToAddress(s), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Nonce returns the pending transaction count for an account.
func (c *Client) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nonce, err := c.node.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch nonce for %s: %v", account.Hex(), err)
	}
	return nonce, nil
}

// GasPrice returns the node's suggested gas price, or zero when the node
// does not support the query. Dev chains commonly accept a zero price.
func (c *Client) GasPrice(ctx context.Context) *big.Int {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	price, err := c.node.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		return new(big.Int)
	}
	return price
}

// ChainID returns the node's chain identifier, or nil when unknown.
func (c *Client) ChainID(ctx context.Context) *big.Int {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, err := c.node.ChainID(ctx)
	if err != nil {
		return nil
	}
	return id
}

// EstimateGas simulates the call against pending state.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.node.EstimateGas(ctx, msg)
}

// Call performs a read-only contract call against latest state.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.node.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// Submit broadcasts a signed transaction and returns its hash.
func (c *Client) Submit(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.node.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast transaction: %v", err)
	}
	return tx.Hash(), nil
}
