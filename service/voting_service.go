package service

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"evoting-backend/ledger"
	"evoting-backend/models"
	"evoting-backend/storage"
)

// VotingService coordinates the relational store and the ledger. It is the
// only component that touches both systems of record, and it orders every
// cast so that a vote row is written only after the ledger accepted the
// transaction.
type VotingService struct {
	store       storage.Store
	sender      *ledger.Sender
	contract    *ledger.Contract
	provisioner *ledger.Provisioner
	tally       *ledger.TallyReader
	vault       KeyVault
	log         zerolog.Logger
}

type CandidateInput struct {
	Name          string `json:"name"`
	Party         string `json:"party"`
	Age           int    `json:"age"`
	Qualification string `json:"qualification"`
	Description   string `json:"description"`
	IsVerified    bool   `json:"is_verified"`
}

type CandidateResult struct {
	ID              uint   `json:"id"`
	CandidateNumber uint64 `json:"candidate_number"`
	Name            string `json:"name"`
	Party           string `json:"party"`
	Count           uint64 `json:"count"`
}

func NewVotingService(
	store storage.Store,
	sender *ledger.Sender,
	contract *ledger.Contract,
	provisioner *ledger.Provisioner,
	tally *ledger.TallyReader,
	vault KeyVault,
	log zerolog.Logger,
) *VotingService {
	return &VotingService{
		store:       store,
		sender:      sender,
		contract:    contract,
		provisioner: provisioner,
		tally:       tally,
		vault:       vault,
		log:         log.With().Str("component", "voting").Logger(),
	}
}

// RegisterVoter creates the voter record together with a fresh ledger
// account, then funds the account and registers it on the contract. The
// ledger steps are best-effort: an unreachable node must not block
// onboarding, the account can be funded out-of-band later.
func (s *VotingService) RegisterVoter(ctx context.Context, username, email, voterID string) (*models.Voter, error) {
	if _, err := s.store.VoterByEmail(email); err == nil {
		return nil, ErrEmailRegistered
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.VoterByVoterID(voterID); err == nil {
		return nil, ErrVoterIDRegistered
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	account, err := s.provisioner.NewAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to provision ledger account: %v", err)
	}

	voter := &models.Voter{
		Username:      username,
		Email:         email,
		VoterID:       voterID,
		Role:          "voter",
		LedgerAddress: account.Address.Hex(),
	}
	if err := s.vault.Store(voter, account.PrivateKey); err != nil {
		return nil, fmt.Errorf("failed to store voter key: %v", err)
	}

	if err := s.store.CreateVoter(voter); err != nil {
		if errors.Is(err, storage.ErrDuplicateVoter) {
			return nil, ErrVoterIDRegistered
		}
		return nil, err
	}

	if hash, err := s.provisioner.Fund(ctx, account.Address); err != nil {
		s.log.Warn().Err(err).Str("voter", voterID).Msg("funding failed")
	} else {
		s.log.Info().Str("voter", voterID).Str("tx", hash.Hex()).Msg("voter account funded")
	}

	if hash, err := s.provisioner.RegisterOnContract(ctx, account.Address); err != nil {
		s.log.Warn().Err(err).Str("voter", voterID).Msg("on-chain registration failed")
	} else if hash != (common.Hash{}) {
		s.log.Info().Str("voter", voterID).Str("tx", hash.Hex()).Msg("voter registered on contract")
	}

	return voter, nil
}

// CastVote records one ballot: validates the preconditions in order, has
// the voter's own key sign the castVote transaction, and persists the vote
// row referencing the returned hash. The row's unique index re-checks
// at-most-one-vote at commit time, so a concurrent duplicate surfaces as
// ErrAlreadyVoted even after its transaction was broadcast.
func (s *VotingService) CastVote(ctx context.Context, voterID, candidateID, electionID uint) (string, error) {
	election, err := s.store.ActiveElection()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoActiveElection
		}
		return "", err
	}
	if electionID != 0 && electionID != election.ID {
		return "", ErrNoActiveElection
	}

	candidate, err := s.store.CandidateByID(candidateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCandidate
		}
		return "", err
	}

	if _, err := s.store.VoteFor(voterID, election.ID); err == nil {
		return "", ErrAlreadyVoted
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	voter, err := s.store.VoterByID(voterID)
	if err != nil {
		return "", err
	}
	if voter.LedgerAddress == "" || voter.LedgerPrivateKey == "" {
		return "", ErrAccountNotProvisioned
	}
	key, err := s.vault.Signer(voter)
	if err != nil {
		return "", ErrAccountNotProvisioned
	}

	if s.contract == nil {
		return "", &SubmissionError{Cause: ledger.ErrContractNotConfigured}
	}
	call, err := s.contract.CastVoteCall(candidate.CandidateNumber)
	if err != nil {
		return "", &SubmissionError{Cause: err}
	}

	hash, err := s.sender.Send(ctx, call, key, voter.LedgerAddress)
	if err != nil {
		s.log.Error().Err(err).Uint("voter", voterID).Msg("vote submission failed")
		return "", &SubmissionError{Cause: err}
	}

	vote := &models.Vote{
		VoterID:     voterID,
		CandidateID: candidate.ID,
		ElectionID:  election.ID,
		TxHash:      hash.Hex(),
		Receipt:     voteReceipt(hash, voter.VoterID),
	}
	if err := s.store.CreateVote(vote); err != nil {
		if errors.Is(err, storage.ErrDuplicateVote) {
			return "", ErrAlreadyVoted
		}
		return "", err
	}

	s.log.Info().
		Uint("voter", voterID).
		Uint64("candidate", candidate.CandidateNumber).
		Str("tx", vote.TxHash).
		Msg("vote recorded")

	return vote.TxHash, nil
}

// voteReceipt derives an opaque fingerprint binding the ledger transaction
// to the voter, handed back as the ballot receipt.
func voteReceipt(txHash common.Hash, voterID string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(txHash.Bytes())
	h.Write([]byte(voterID))
	return hex.EncodeToString(h.Sum(nil))
}

// AddCandidate assigns the next candidate number, persists the candidate
// and mirrors it onto the contract when one is bound. The on-chain call is
// best-effort; its hash is empty when it was skipped or failed.
func (s *VotingService) AddCandidate(ctx context.Context, input CandidateInput) (*models.Candidate, string, error) {
	number, err := s.store.NextCandidateNumber()
	if err != nil {
		return nil, "", err
	}

	candidate := &models.Candidate{
		CandidateNumber: number,
		Name:            input.Name,
		Party:           input.Party,
		Age:             input.Age,
		Qualification:   input.Qualification,
		Description:     input.Description,
		IsVerified:      input.IsVerified,
	}
	if err := s.store.CreateCandidate(candidate); err != nil {
		return nil, "", err
	}

	if s.contract == nil || s.provisioner == nil {
		return candidate, "", nil
	}

	call, err := s.contract.AddCandidateCall(input.Name)
	if err != nil {
		s.log.Warn().Err(err).Str("candidate", input.Name).Msg("failed to encode addCandidate")
		return candidate, "", nil
	}
	hash, err := s.provisioner.OperatorSend(ctx, call)
	if err != nil {
		s.log.Warn().Err(err).Str("candidate", input.Name).Msg("on-chain addCandidate failed")
		return candidate, "", nil
	}
	return candidate, hash.Hex(), nil
}

func (s *VotingService) UpdateCandidate(candidate *models.Candidate) error {
	return s.store.UpdateCandidate(candidate)
}

func (s *VotingService) DeleteCandidate(id uint) error {
	return s.store.DeleteCandidate(id)
}

func (s *VotingService) Candidates() ([]models.Candidate, error) {
	return s.store.Candidates()
}

func (s *VotingService) StartElection() (*models.Election, error) {
	return s.store.StartElection()
}

func (s *VotingService) StopElection() error {
	return s.store.StopElection()
}

func (s *VotingService) ActiveElection() (*models.Election, error) {
	election, err := s.store.ActiveElection()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return election, err
}

// Tally returns the on-chain count for a candidate number; zero when the
// ledger is degraded.
func (s *VotingService) Tally(ctx context.Context, candidateNumber uint64) uint64 {
	return s.tally.CountFor(ctx, candidateNumber)
}

// VerifyVote reports whether the contract has seen a vote from the address.
func (s *VotingService) VerifyVote(ctx context.Context, address string) bool {
	return s.tally.Verify(ctx, address)
}

// Results joins the candidate list with on-chain tallies.
func (s *VotingService) Results(ctx context.Context) ([]CandidateResult, error) {
	candidates, err := s.store.Candidates()
	if err != nil {
		return nil, err
	}

	results := make([]CandidateResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, CandidateResult{
			ID:              c.ID,
			CandidateNumber: c.CandidateNumber,
			Name:            c.Name,
			Party:           c.Party,
			Count:           s.tally.CountFor(ctx, c.CandidateNumber),
		})
	}
	return results, nil
}

// ExportResultsCSV streams the tally table for reporting.
func (s *VotingService) ExportResultsCSV(ctx context.Context, w io.Writer) error {
	results, err := s.Results(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Candidate No", "Name", "Party", "Vote Count"}); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			strconv.FormatUint(r.CandidateNumber, 10),
			r.Name,
			r.Party,
			strconv.FormatUint(r.Count, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *VotingService) PromoteToAdmin(voterID uint) error {
	return s.store.PromoteVoter(voterID)
}
