package storage

import (
	"errors"

	"evoting-backend/models"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateVote is returned by CreateVote when a vote already exists
	// for the same voter and election. It is raised by the database's
	// unique index, so it holds under concurrent writers.
	ErrDuplicateVote = errors.New("vote already recorded for this voter and election")
	// ErrDuplicateVoter is returned when a voter's email or voter id is
	// already registered.
	ErrDuplicateVoter = errors.New("voter already registered")
)

// Store is the relational persistence surface used by the voting service.
type Store interface {
	CreateVoter(voter *models.Voter) error
	VoterByID(id uint) (*models.Voter, error)
	VoterByEmail(email string) (*models.Voter, error)
	VoterByVoterID(voterID string) (*models.Voter, error)
	PromoteVoter(id uint) error

	CreateCandidate(candidate *models.Candidate) error
	UpdateCandidate(candidate *models.Candidate) error
	DeleteCandidate(id uint) error
	CandidateByID(id uint) (*models.Candidate, error)
	Candidates() ([]models.Candidate, error)
	NextCandidateNumber() (uint64, error)

	ActiveElection() (*models.Election, error)
	StartElection() (*models.Election, error)
	StopElection() error

	CreateVote(vote *models.Vote) error
	VoteFor(voterID, electionID uint) (*models.Vote, error)
}
