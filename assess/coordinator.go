// Package assess submits a validator's assessment of a business proposal and tracks the results.
package assess

import (
	"context"
	"sync"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/proposal"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Backend interface {
	AssessResult(ctx context.Context, id, actor string) (*core.AssessResult, error)
	SubmitAssess(ctx context.Context, in backend.AssessInput) error
}

type Wallet interface {
	State() wallet.State
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type Voting interface {
	SubmitAssess(opts *bind.TransactOpts, proposalID [32]byte, scores []uint64) (*types.Transaction, error)
}

// Proposals gives the joined proposal being assessed.
type Proposals interface {
	RequireJoined() (*core.Proposal, error)
}

type Identity interface {
	User() *core.User
}

var (
	_ Backend   = (*backend.Client)(nil)
	_ Wallet    = (*wallet.Connection)(nil)
	_ Voting    = (*contract.VoteraVote)(nil)
	_ Proposals = (*proposal.Repository)(nil)
)

type Outcome struct {
	Succeeded bool
	MessageID core.MessageID
	TxHash    common.Hash
}

type Coordinator struct {
	backend   Backend
	wallet    Wallet
	vote      Voting
	proposals Proposals
	identity  Identity
	logger    logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[string]bool
	results  map[string]*core.AssessResult
}

func NewCoordinator(b Backend, w Wallet, vote Voting, proposals Proposals, identity Identity, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		backend:   b,
		wallet:    w,
		vote:      vote,
		proposals: proposals,
		identity:  identity,
		logger:    logger,
		inFlight:  make(map[string]bool),
		results:   make(map[string]*core.AssessResult),
	}
}

// Assessable reports whether status is one of the assessment phases.
func Assessable(status core.ProposalStatus) bool {
	switch status {
	case core.StatusPendingAssess, core.StatusAssess, core.StatusReject:
		return true
	}
	return false
}

func (c *Coordinator) actor() string {
	if u := c.identity.User(); u != nil {
		return u.ID
	}
	return ""
}

// Result fetches the assessment result of id for the signed-in member and caches it.
func (c *Coordinator) Result(ctx context.Context, id string) (*core.AssessResult, error) {
	res, err := c.backend.AssessResult(ctx, id, c.actor())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.Errorf("no assess result for %s", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.results[id] = res
	c.mu.Unlock()
	cp := *res
	return &cp, nil
}

func (c *Coordinator) Cached(id string) *core.AssessResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.results[id]
	if !ok {
		return nil
	}
	cp := *res
	return &cp
}

// Submit sends scores for the current proposal: on-chain first, then the backend record keyed by
// the transaction hash.
func (c *Coordinator) Submit(ctx context.Context, scores Scores) Outcome {
	if err := scores.Validate(); err != nil {
		return Outcome{MessageID: core.AssessIncomplete}
	}

	p, err := c.proposals.RequireJoined()
	switch {
	case errors.Is(err, core.ErrNotJoined):
		return Outcome{MessageID: core.NotJoined}
	case err != nil:
		return Outcome{MessageID: core.InvalidInput}
	}
	if p.Type != core.BusinessProposal || !Assessable(p.Status) {
		return Outcome{MessageID: core.AssessNotAllowed}
	}
	switch c.wallet.State().Status {
	case wallet.Connected:
	case wallet.OtherChain:
		return Outcome{MessageID: core.WalletOtherChain}
	default:
		return Outcome{MessageID: core.WalletNotConnected}
	}

	if !c.acquire(p.ID) {
		return Outcome{MessageID: core.Busy}
	}
	defer c.release(p.ID)

	logger := c.logger.WithField("proposal", p.ID)

	res := c.Cached(p.ID)
	if res == nil {
		if res, err = c.Result(ctx, p.ID); err != nil {
			logger.Errorf("fetch assess result: %s", err)
			return Outcome{MessageID: core.SystemOther}
		}
	}
	if !res.NeedEvaluation {
		return Outcome{MessageID: core.AssessNotAllowed}
	}

	proposalID, err := contract.ParseProposalID(p.ProposalID)
	if err != nil {
		logger.Errorf("assess: %s", err)
		return Outcome{MessageID: core.InvalidInput}
	}
	opts, err := c.wallet.Transactor(ctx)
	if err != nil {
		return Outcome{MessageID: core.WalletNotConnected}
	}

	tx, err := c.vote.SubmitAssess(opts, proposalID, scores.Uint64s())
	if err != nil {
		if contract.IsUserRejected(err) {
			logger.Info("assessment canceled by user")
			return Outcome{MessageID: core.AuthCancelInput}
		}
		logger.Errorf("submit assess transaction: %s", err)
		return Outcome{MessageID: core.WalletExecutionError}
	}
	hash := tx.Hash()

	receipt, err := c.wallet.WaitMined(ctx, tx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf("wait assess transaction %s: %s", hash.Hex(), err)
		}
		return Outcome{MessageID: core.WalletExecutionError, TxHash: hash}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Errorf("assess transaction %s reverted", hash.Hex())
		return Outcome{MessageID: core.WalletExecutionError, TxHash: hash}
	}

	if err := c.backend.SubmitAssess(ctx, backend.AssessInput{
		ProposalID: p.ID,
		Scores:     scores.Values(),
		TxHash:     hash,
	}); err != nil {
		logger.Errorf("record assessment %s: %s", hash.Hex(), err)
		return Outcome{MessageID: core.SystemOther, TxHash: hash}
	}
	if ctx.Err() != nil {
		return Outcome{Succeeded: true, MessageID: core.AssessSubmitted, TxHash: hash}
	}

	c.mu.Lock()
	if cached, ok := c.results[p.ID]; ok {
		cached.NeedEvaluation = false
	}
	c.mu.Unlock()
	if _, err := c.Result(ctx, p.ID); err != nil && ctx.Err() == nil {
		logger.Warnf("refetch assess result: %s", err)
	}

	logger.WithField("tx", hash.Hex()).Info("assessment submitted")
	return Outcome{Succeeded: true, MessageID: core.AssessSubmitted, TxHash: hash}
}

func (c *Coordinator) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[id] {
		return false
	}
	c.inFlight[id] = true
	return true
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}
