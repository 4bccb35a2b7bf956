package ballot

import (
	"context"
	"math/big"

	"github.com/bosagora/votera/contract"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Counter reads the tallies VoteraVote keeps for a proposal.
type Counter interface {
	GetAssessCount(opts *bind.CallOpts, proposalID [32]byte) (*big.Int, error)
	GetBallotCount(opts *bind.CallOpts, proposalID [32]byte) (*big.Int, error)
	GetVoteCounts(opts *bind.CallOpts, proposalID [32]byte) ([3]*big.Int, error)
}

var _ Counter = (*contract.VoteraVote)(nil)

// Tally is the on-chain count, indexed like core.Choice for Votes.
type Tally struct {
	Assessments *big.Int
	Ballots     *big.Int
	Votes       [3]*big.Int
}

// ChainTally reads the three counters concurrently.
func ChainTally(ctx context.Context, counter Counter, onChainID string) (*Tally, error) {
	id, err := contract.ParseProposalID(onChainID)
	if err != nil {
		return nil, err
	}
	opts := &bind.CallOpts{Context: ctx}

	var t Tally
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t.Assessments, err = counter.GetAssessCount(opts, id)
		return errors.Wrap(err, "assess count")
	})
	g.Go(func() (err error) {
		t.Ballots, err = counter.GetBallotCount(opts, id)
		return errors.Wrap(err, "ballot count")
	})
	g.Go(func() (err error) {
		t.Votes, err = counter.GetVoteCounts(opts, id)
		return errors.Wrap(err, "vote counts")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &t, nil
}
