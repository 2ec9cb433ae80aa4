package models

import "time"

// Voter is a registered voter. The ledger keypair is generated once at
// registration; the private key is custodied server-side so the backend can
// sign on the voter's behalf (demo deployment — see service.KeyVault).
type Voter struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"size:100;not null" json:"username"`
	Email            string    `gorm:"uniqueIndex;size:150;not null" json:"email"`
	VoterID          string    `gorm:"uniqueIndex;size:100;not null" json:"voter_id"`
	Role             string    `gorm:"size:20;default:voter" json:"role"`
	LedgerAddress    string    `gorm:"size:64" json:"ledger_address"`
	LedgerPrivateKey string    `gorm:"size:130" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

func (v *Voter) IsAdmin() bool {
	return v.Role == "admin"
}

// Candidate is a ballot option. CandidateNumber is the identifier shared
// with the on-chain contract; the relational primary key never crosses the
// RPC boundary.
type Candidate struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	CandidateNumber uint64 `gorm:"uniqueIndex;not null" json:"candidate_number"`
	Name            string `gorm:"size:100;not null" json:"name"`
	Party           string `gorm:"size:100" json:"party"`
	Age             int    `json:"age"`
	Qualification   string `gorm:"size:200" json:"qualification"`
	Description     string `gorm:"type:text" json:"description"`
	IsVerified      bool   `json:"is_verified"`
}

type Election struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote links a voter's ballot to the ledger transaction that recorded it.
// The composite unique index is the durable at-most-one-vote guard; rows are
// insert-only and written only after a successful transaction broadcast.
type Vote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VoterID     uint      `gorm:"uniqueIndex:uniq_voter_election;not null" json:"voter_id"`
	CandidateID uint      `gorm:"index;not null" json:"candidate_id"`
	ElectionID  uint      `gorm:"uniqueIndex:uniq_voter_election;not null" json:"election_id"`
	TxHash      string    `gorm:"size:80;not null" json:"tx_hash"`
	Receipt     string    `gorm:"size:80" json:"receipt"`
	CreatedAt   time.Time `json:"created_at"`
}
