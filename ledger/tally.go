package ledger

import (
	"context"

	"github.com/rs/zerolog"
)

// TallyReader queries on-chain vote counts. Reporting must stay available
// when the ledger is degraded, so every failure collapses to a zero value
// instead of an error.
type TallyReader struct {
	client   *Client
	contract *Contract
	log      zerolog.Logger
}

func NewTallyReader(client *Client, contract *Contract, log zerolog.Logger) *TallyReader {
	return &TallyReader{
		client:   client,
		contract: contract,
		log:      log.With().Str("component", "tally").Logger(),
	}
}

// CountFor returns the on-chain vote count for a candidate number, or 0
// when the binding is absent or the read fails.
func (t *TallyReader) CountFor(ctx context.Context, candidateNumber uint64) uint64 {
	if t.contract == nil || t.client == nil {
		return 0
	}

	data, err := t.contract.voteCountData(candidateNumber)
	if err != nil {
		t.log.Warn().Err(err).Uint64("candidate", candidateNumber).Msg("failed to encode tally call")
		return 0
	}

	out, err := t.client.Call(ctx, t.contract.Address(), data)
	if err != nil {
		t.log.Debug().Err(err).Uint64("candidate", candidateNumber).Msg("tally call failed")
		return 0
	}

	count, err := t.contract.unpackVoteCount(out)
	if err != nil {
		t.log.Warn().Err(err).Uint64("candidate", candidateNumber).Msg("failed to decode tally result")
		return 0
	}
	return count
}

// Verify reports whether the given account has voted according to the
// contract, or false when the binding is absent or the read fails.
func (t *TallyReader) Verify(ctx context.Context, voterAddress string) bool {
	if t.contract == nil || t.client == nil {
		return false
	}

	addr, err := ParseAddress(voterAddress)
	if err != nil {
		return false
	}

	data, err := t.contract.verifyVoteData(addr)
	if err != nil {
		return false
	}

	out, err := t.client.Call(ctx, t.contract.Address(), data)
	if err != nil {
		t.log.Debug().Err(err).Str("voter", addr.Hex()).Msg("verify call failed")
		return false
	}

	voted, err := t.contract.unpackVerifyVote(out)
	if err != nil {
		return false
	}
	return voted
}
