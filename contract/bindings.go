package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FundProposalInput is the createFundProposal call built from a fee quote.
type FundProposalInput struct {
	ProposalID  [32]byte
	Title       string
	Start       uint64
	End         uint64
	StartAssess uint64
	EndAssess   uint64
	DocHash     [32]byte
	Amount      *big.Int
	Signature   []byte
}

// SystemProposalInput is the createSystemProposal call. System proposals carry no funding fields.
type SystemProposalInput struct {
	ProposalID [32]byte
	Title      string
	Start      uint64
	End        uint64
	DocHash    [32]byte
	Signature  []byte
}

type ProposalData struct {
	State        uint8
	ProposalType uint8
	Title        string
	Start        uint64
	End          uint64
	StartAssess  uint64
	EndAssess    uint64
	DocHash      [32]byte
	FundAmount   *big.Int
	Proposer     common.Address
}

type CommonsBudget struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewCommonsBudget(address common.Address, backend bind.ContractBackend) *CommonsBudget {
	return &CommonsBudget{
		address:  address,
		contract: bind.NewBoundContract(address, commonsBudgetABI, backend, backend, backend),
	}
}

func (c *CommonsBudget) Address() common.Address {
	return c.address
}

func (c *CommonsBudget) CreateFundProposal(opts *bind.TransactOpts, in FundProposalInput) (*types.Transaction, error) {
	return c.contract.Transact(opts, "createFundProposal",
		in.ProposalID, in.Title, in.Start, in.End, in.StartAssess, in.EndAssess, in.DocHash, in.Amount, in.Signature)
}

func (c *CommonsBudget) CreateSystemProposal(opts *bind.TransactOpts, in SystemProposalInput) (*types.Transaction, error) {
	return c.contract.Transact(opts, "createSystemProposal",
		in.ProposalID, in.Title, in.Start, in.End, in.DocHash, in.Signature)
}

func (c *CommonsBudget) Withdraw(opts *bind.TransactOpts, proposalID [32]byte) (*types.Transaction, error) {
	return c.contract.Transact(opts, "withdraw", proposalID)
}

func (c *CommonsBudget) GetProposalData(opts *bind.CallOpts, proposalID [32]byte) (*ProposalData, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getProposalData", proposalID); err != nil {
		return nil, err
	}
	return &ProposalData{
		State:        *abi.ConvertType(out[0], new(uint8)).(*uint8),
		ProposalType: *abi.ConvertType(out[1], new(uint8)).(*uint8),
		Title:        *abi.ConvertType(out[2], new(string)).(*string),
		Start:        *abi.ConvertType(out[3], new(uint64)).(*uint64),
		End:          *abi.ConvertType(out[4], new(uint64)).(*uint64),
		StartAssess:  *abi.ConvertType(out[5], new(uint64)).(*uint64),
		EndAssess:    *abi.ConvertType(out[6], new(uint64)).(*uint64),
		DocHash:      *abi.ConvertType(out[7], new([32]byte)).(*[32]byte),
		FundAmount:   *abi.ConvertType(out[8], new(*big.Int)).(**big.Int),
		Proposer:     *abi.ConvertType(out[9], new(common.Address)).(*common.Address),
	}, nil
}

type VoteraVote struct {
	address  common.Address
	contract *bind.BoundContract
}

func NewVoteraVote(address common.Address, backend bind.ContractBackend) *VoteraVote {
	return &VoteraVote{
		address:  address,
		contract: bind.NewBoundContract(address, voteraVoteABI, backend, backend, backend),
	}
}

func (v *VoteraVote) Address() common.Address {
	return v.address
}

// SubmitAssess sends the five scores in criteria order.
func (v *VoteraVote) SubmitAssess(opts *bind.TransactOpts, proposalID [32]byte, scores []uint64) (*types.Transaction, error) {
	return v.contract.Transact(opts, "submitAssess", proposalID, scores)
}

func (v *VoteraVote) SubmitBallot(opts *bind.TransactOpts, proposalID [32]byte, commitment [32]byte, signature []byte) (*types.Transaction, error) {
	return v.contract.Transact(opts, "submitBallot", proposalID, commitment, signature)
}

func (v *VoteraVote) GetAssessCount(opts *bind.CallOpts, proposalID [32]byte) (*big.Int, error) {
	return v.callUint(opts, "getAssessCount", proposalID)
}

func (v *VoteraVote) GetBallotCount(opts *bind.CallOpts, proposalID [32]byte) (*big.Int, error) {
	return v.callUint(opts, "getBallotCount", proposalID)
}

// GetVoteCounts returns the tallies indexed like core.Choice.
func (v *VoteraVote) GetVoteCounts(opts *bind.CallOpts, proposalID [32]byte) ([3]*big.Int, error) {
	var out []interface{}
	if err := v.contract.Call(opts, &out, "getVoteCounts", proposalID); err != nil {
		return [3]*big.Int{}, err
	}
	return *abi.ConvertType(out[0], new([3]*big.Int)).(*[3]*big.Int), nil
}

func (v *VoteraVote) callUint(opts *bind.CallOpts, method string, proposalID [32]byte) (*big.Int, error) {
	var out []interface{}
	if err := v.contract.Call(opts, &out, method, proposalID); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
