package proposal

import (
	"context"
	"strings"

	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/pkg/errors"
)

// ChainReader reads the registered copy of a proposal from the commons budget.
type ChainReader interface {
	GetProposalData(opts *bind.CallOpts, proposalID [32]byte) (*contract.ProposalData, error)
}

var _ ChainReader = (*contract.CommonsBudget)(nil)

// ErrNotRegistered means the proposal has no on-chain id yet, its fee was never confirmed.
var ErrNotRegistered = errors.New("proposal is not registered on-chain")

type OnChain struct {
	Data *contract.ProposalData
	// DocHashMatches is false when the document the backend serves differs from the registered hash
	DocHashMatches  bool
	ProposerMatches bool
}

// VerifyOnChain compares the current proposal with its on-chain registration.
func (r *Repository) VerifyOnChain(ctx context.Context, chain ChainReader) (*OnChain, error) {
	cur := r.Current()
	if cur == nil {
		return nil, core.ErrProposalNotLoaded
	}
	if cur.ProposalID == "" {
		return nil, ErrNotRegistered
	}
	id, err := contract.ParseProposalID(cur.ProposalID)
	if err != nil {
		return nil, err
	}

	data, err := chain.GetProposalData(&bind.CallOpts{Context: ctx}, id)
	if err != nil {
		return nil, errors.Wrapf(err, "read proposal %s", cur.ProposalID)
	}
	out := &OnChain{
		Data:            data,
		DocHashMatches:  cur.VerifyDocHash(data.DocHash),
		ProposerMatches: strings.EqualFold(cur.ProposerAddress, data.Proposer.Hex()),
	}
	if !out.DocHashMatches {
		r.logger.WithField("proposal", cur.ID).Warn("document hash differs from the on-chain registration")
	}
	return out, nil
}
