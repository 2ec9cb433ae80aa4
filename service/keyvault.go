package service

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"evoting-backend/ledger"
	"evoting-backend/models"
)

// KeyVault custodies voter signing keys. The transaction path only ever
// asks the vault for a signer, so a deployment where voters sign
// client-side can substitute a vault that refuses custody without touching
// transaction construction.
type KeyVault interface {
	// Store attaches a newly provisioned key to the voter record before it
	// is persisted.
	Store(voter *models.Voter, key *ecdsa.PrivateKey) error
	// Signer returns the voter's signing key.
	Signer(voter *models.Voter) (*ecdsa.PrivateKey, error)
}

// RecordKeyVault keeps the key hex-encoded on the voter's own record, the
// demo-grade custody scheme of the reference deployment.
type RecordKeyVault struct{}

func (RecordKeyVault) Store(voter *models.Voter, key *ecdsa.PrivateKey) error {
	voter.LedgerPrivateKey = hexutil.Encode(crypto.FromECDSA(key))
	return nil
}

func (RecordKeyVault) Signer(voter *models.Voter) (*ecdsa.PrivateKey, error) {
	if voter.LedgerPrivateKey == "" {
		return nil, errors.New("no key stored for voter")
	}
	return ledger.ParsePrivateKey(voter.LedgerPrivateKey)
}
