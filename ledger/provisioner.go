package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"
)

// Account is a freshly generated ledger keypair.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

func (a Account) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(a.PrivateKey))
}

// ParsePrivateKey restores a key from its hex form, with or without the 0x
// prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	return crypto.HexToECDSA(s)
}

// Provisioner creates ledger accounts for new voters and prepares them for
// use: a funding transfer from the operator account so the voter can pay
// fees, and an on-chain registerVoter call. Both are best-effort; the
// caller logs and absorbs their failures so registration never depends on
// ledger health.
type Provisioner struct {
	sender      *Sender
	contract    *Contract
	operatorKey *ecdsa.PrivateKey
	fundAmount  *big.Int
	log         zerolog.Logger
}

func NewProvisioner(sender *Sender, contract *Contract, operatorKey *ecdsa.PrivateKey, log zerolog.Logger) *Provisioner {
	return &Provisioner{
		sender:      sender,
		contract:    contract,
		operatorKey: operatorKey,
		fundAmount:  big.NewInt(params.Ether),
		log:         log.With().Str("component", "provisioner").Logger(),
	}
}

// NewAccount generates a keypair. Pure; no network call.
func (p *Provisioner) NewAccount() (Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, err
	}
	return Account{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, nil
}

// OperatorSend signs and broadcasts a call from the operator account.
func (p *Provisioner) OperatorSend(ctx context.Context, call Call) (common.Hash, error) {
	if p.operatorKey == nil {
		return common.Hash{}, errors.New("operator key not configured")
	}
	return p.sender.Send(ctx, call, p.operatorKey, "")
}

// Fund transfers one native unit from the operator account to the voter's
// account.
func (p *Provisioner) Fund(ctx context.Context, account common.Address) (common.Hash, error) {
	call := Call{
		To:         account,
		Value:      new(big.Int).Set(p.fundAmount),
		GasCeiling: TransferGas,
	}
	return p.OperatorSend(ctx, call)
}

// RegisterOnContract records the voter's address on the contract with the
// operator's signature. A no-op when the binding is absent.
func (p *Provisioner) RegisterOnContract(ctx context.Context, account common.Address) (common.Hash, error) {
	if p.contract == nil {
		p.log.Debug().Str("voter", account.Hex()).Msg("contract absent, skipping on-chain registration")
		return common.Hash{}, nil
	}
	call, err := p.contract.RegisterVoterCall(account)
	if err != nil {
		return common.Hash{}, err
	}
	return p.OperatorSend(ctx, call)
}
