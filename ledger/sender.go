package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// Static gas limits used when simulation is unavailable. Matches the
// deployed contract's worst-case paths.
const (
	FallbackGasVote      = 300000
	FallbackGasCandidate = 400000
	TransferGas          = 21000
)

// Call describes one outgoing transaction: a contract invocation or a plain
// value transfer.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int

	// GasCeiling, when set, is used as the gas limit without simulation.
	GasCeiling uint64
	// FallbackGas is used when gas estimation fails. Estimation failure
	// never aborts a send.
	FallbackGas uint64
}

// Sender builds, signs and broadcasts transactions. Outgoing transactions
// are serialized per sending account: the account's lock is held from the
// nonce read through the broadcast, so two concurrent sends from the same
// account cannot observe the same nonce.
type Sender struct {
	client *Client
	log    zerolog.Logger

	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

func NewSender(client *Client, log zerolog.Logger) *Sender {
	return &Sender{
		client: client,
		log:    log.With().Str("component", "txsender").Logger(),
		locks:  make(map[common.Address]*sync.Mutex),
	}
}

func (s *Sender) lockFor(account common.Address) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[account]
	if !ok {
		lock = new(sync.Mutex)
		s.locks[account] = lock
	}
	return lock
}

// Send resolves nonce, gas and chain id for the call, signs it with key and
// broadcasts it. from may be empty, in which case it is derived from the
// key. Chain-id and gas-price lookups degrade silently; address, nonce and
// broadcast failures abort the send.
func (s *Sender) Send(ctx context.Context, call Call, key *ecdsa.PrivateKey, from string) (common.Hash, error) {
	if s == nil || s.client == nil {
		return common.Hash{}, errors.New("ledger node not configured")
	}
	if key == nil {
		return common.Hash{}, errors.New("missing signing key")
	}

	sender := crypto.PubkeyToAddress(key.PublicKey)
	if from != "" {
		parsed, err := ParseAddress(from)
		if err != nil {
			return common.Hash{}, err
		}
		sender = parsed
	}

	lock := s.lockFor(sender)
	lock.Lock()
	defer lock.Unlock()

	nonce, err := s.client.Nonce(ctx, sender)
	if err != nil {
		return common.Hash{}, err
	}

	// nil when the node does not answer eth_chainId; the signer then omits
	// replay protection, which local dev chains accept.
	chainID := s.client.ChainID(ctx)

	gas := call.GasCeiling
	if gas == 0 {
		msg := ethereum.CallMsg{From: sender, To: &call.To, Data: call.Data, Value: call.Value}
		gas, err = s.client.EstimateGas(ctx, msg)
		if err != nil {
			gas = call.FallbackGas
			if gas == 0 {
				gas = FallbackGasVote
			}
			s.log.Debug().Err(err).Uint64("gas", gas).
				Msg("gas estimation failed, using static limit")
		}
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: s.client.GasPrice(ctx),
		Gas:      gas,
		To:       &call.To,
		Value:    value,
		Data:     call.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := s.client.Submit(ctx, signed)
	if err != nil {
		return common.Hash{}, err
	}

	s.log.Info().
		Str("from", sender.Hex()).
		Str("to", call.To.Hex()).
		Uint64("nonce", nonce).
		Str("tx", hash.Hex()).
		Msg("transaction broadcast")

	return hash, nil
}
