package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrContractNotConfigured is returned by write paths that cannot proceed
// without a bound contract. Read paths degrade to zero values instead.
var ErrContractNotConfigured = errors.New("voting contract not configured")

// Contract binds the deployed voting contract's interface description to
// its on-chain address. A nil *Contract means the binding is absent and
// every dependent operation degrades (no-op writes, zero reads).
type Contract struct {
	abi     abi.ABI
	address common.Address
}

func NewContract(parsed abi.ABI, address common.Address) *Contract {
	return &Contract{abi: parsed, address: address}
}

// LoadContract reads the interface description from a build artifact and
// binds it to the deployed address. Returns (nil, nil) when either setting
// is absent: the caller runs in degraded mode rather than failing startup.
func LoadContract(abiPath, address string) (*Contract, error) {
	if abiPath == "" || address == "" {
		return nil, nil
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract artifact: %v", err)
	}

	raw, err := resolveABI(data)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract interface: %v", err)
	}

	return NewContract(parsed, addr), nil
}

// resolveABI locates the interface description inside an arbitrary build
// artifact. Shapes are tried in order: a top-level "abi" key (Truffle), a
// bare array (the description itself), a nested "output.abi", and the first
// "contracts[*].abi" (solc combined output).
func resolveABI(data []byte) (json.RawMessage, error) {
	var wrapped struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.ABI) > 0 {
		return wrapped.ABI, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return data, nil
	}

	var nested struct {
		Output struct {
			ABI json.RawMessage `json:"abi"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && len(nested.Output.ABI) > 0 {
		return nested.Output.ABI, nil
	}

	var combined struct {
		Contracts map[string]struct {
			ABI json.RawMessage `json:"abi"`
		} `json:"contracts"`
	}
	if err := json.Unmarshal(data, &combined); err == nil {
		for _, c := range combined.Contracts {
			if len(c.ABI) > 0 {
				return c.ABI, nil
			}
		}
	}

	return nil, errors.New("no contract interface description found in artifact")
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) pack(method string, args ...interface{}) (Call, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("failed to encode %s call: %v", method, err)
	}
	return Call{To: c.address, Data: data}, nil
}

// RegisterVoterCall encodes registerVoter(address).
func (c *Contract) RegisterVoterCall(voter common.Address) (Call, error) {
	call, err := c.pack("registerVoter", voter)
	if err != nil {
		return Call{}, err
	}
	call.FallbackGas = FallbackGasVote
	return call, nil
}

// AddCandidateCall encodes addCandidate(string).
func (c *Contract) AddCandidateCall(name string) (Call, error) {
	call, err := c.pack("addCandidate", name)
	if err != nil {
		return Call{}, err
	}
	call.FallbackGas = FallbackGasCandidate
	return call, nil
}

// CastVoteCall encodes castVote(uint256).
func (c *Contract) CastVoteCall(candidateNumber uint64) (Call, error) {
	call, err := c.pack("castVote", new(big.Int).SetUint64(candidateNumber))
	if err != nil {
		return Call{}, err
	}
	call.FallbackGas = FallbackGasVote
	return call, nil
}

func (c *Contract) voteCountData(candidateNumber uint64) ([]byte, error) {
	return c.abi.Pack("getVoteCount", new(big.Int).SetUint64(candidateNumber))
}

func (c *Contract) verifyVoteData(voter common.Address) ([]byte, error) {
	return c.abi.Pack("verifyVote", voter)
}

func (c *Contract) unpackVoteCount(out []byte) (uint64, error) {
	vals, err := c.abi.Unpack("getVoteCount", out)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("unexpected getVoteCount result arity %d", len(vals))
	}
	count, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected getVoteCount result type %T", vals[0])
	}
	return count.Uint64(), nil
}

func (c *Contract) unpackVerifyVote(out []byte) (bool, error) {
	vals, err := c.abi.Unpack("verifyVote", out)
	if err != nil {
		return false, err
	}
	if len(vals) != 1 {
		return false, fmt.Errorf("unexpected verifyVote result arity %d", len(vals))
	}
	voted, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected verifyVote result type %T", vals[0])
	}
	return voted, nil
}
