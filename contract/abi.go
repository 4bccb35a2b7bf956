// Package contract binds the CommonsBudget and VoteraVote contracts.
package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

const CommonsBudgetABI = `[
{"type":"function","name":"createFundProposal","stateMutability":"payable","inputs":[
	{"name":"proposalID","type":"bytes32"},{"name":"title","type":"string"},
	{"name":"start","type":"uint64"},{"name":"end","type":"uint64"},
	{"name":"startAssess","type":"uint64"},{"name":"endAssess","type":"uint64"},
	{"name":"docHash","type":"bytes32"},{"name":"amount","type":"uint256"},
	{"name":"signature","type":"bytes"}],"outputs":[]},
{"type":"function","name":"createSystemProposal","stateMutability":"payable","inputs":[
	{"name":"proposalID","type":"bytes32"},{"name":"title","type":"string"},
	{"name":"start","type":"uint64"},{"name":"end","type":"uint64"},
	{"name":"docHash","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[
	{"name":"proposalID","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"getProposalData","stateMutability":"view","inputs":[
	{"name":"proposalID","type":"bytes32"}],"outputs":[
	{"name":"state","type":"uint8"},{"name":"proposalType","type":"uint8"},
	{"name":"title","type":"string"},{"name":"start","type":"uint64"},{"name":"end","type":"uint64"},
	{"name":"startAssess","type":"uint64"},{"name":"endAssess","type":"uint64"},
	{"name":"docHash","type":"bytes32"},{"name":"fundAmount","type":"uint256"},
	{"name":"proposer","type":"address"}]}
]`

const VoteraVoteABI = `[
{"type":"function","name":"submitAssess","stateMutability":"nonpayable","inputs":[
	{"name":"proposalID","type":"bytes32"},{"name":"assess","type":"uint64[]"}],"outputs":[]},
{"type":"function","name":"submitBallot","stateMutability":"nonpayable","inputs":[
	{"name":"proposalID","type":"bytes32"},{"name":"commitment","type":"bytes32"},
	{"name":"signature","type":"bytes"}],"outputs":[]},
{"type":"function","name":"getAssessCount","stateMutability":"view","inputs":[
	{"name":"proposalID","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getBallotCount","stateMutability":"view","inputs":[
	{"name":"proposalID","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getVoteCounts","stateMutability":"view","inputs":[
	{"name":"proposalID","type":"bytes32"}],"outputs":[{"name":"","type":"uint256[3]"}]}
]`

var (
	commonsBudgetABI = mustParseABI(CommonsBudgetABI)
	voteraVoteABI    = mustParseABI(VoteraVoteABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(errors.New("invalid ABI: " + err.Error()))
	}
	return parsed
}

// ParseProposalID decodes an on-chain proposal id, a 0x-prefixed 32 byte hex string.
func ParseProposalID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hexutil.Decode(s)
	if err != nil {
		return id, errors.Wrapf(err, "proposal id %q", s)
	}
	if len(raw) != len(id) {
		return id, errors.Errorf("proposal id %q is %d bytes", s, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
