// Package ballot casts a validator's ballot on a proposal vote and withdraws the funds of an
// approved business proposal.
package ballot

import (
	"context"
	"sync"
	"time"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/proposal"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultValidatorLimit caps Validators when no limit is given.
const DefaultValidatorLimit = 100

type Backend interface {
	VoteStatus(ctx context.Context, id, actor string) (*core.VoteStatus, error)
	SubmitBallot(ctx context.Context, proposalID, address string, choice core.Choice) (*backend.BallotCommitment, error)
	RecordBallot(ctx context.Context, in backend.RecordBallotInput) (*backend.Ballot, error)
	UpdateReceipt(ctx context.Context, txHash common.Hash) error
	ListValidators(ctx context.Context, proposalID string, limit int) ([]backend.Validator, error)
}

type Wallet interface {
	State() wallet.State
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type Voting interface {
	SubmitBallot(opts *bind.TransactOpts, proposalID [32]byte, commitment [32]byte, signature []byte) (*types.Transaction, error)
}

type Budget interface {
	Withdraw(opts *bind.TransactOpts, proposalID [32]byte) (*types.Transaction, error)
}

type Proposals interface {
	Current() *core.Proposal
	RequireJoined() (*core.Proposal, error)
}

type Identity interface {
	User() *core.User
}

var (
	_ Backend   = (*backend.Client)(nil)
	_ Wallet    = (*wallet.Connection)(nil)
	_ Voting    = (*contract.VoteraVote)(nil)
	_ Budget    = (*contract.CommonsBudget)(nil)
	_ Proposals = (*proposal.Repository)(nil)
)

var withdrawMessages = map[contract.RevertCode]core.MessageID{
	contract.RevertNotFoundProposal:    core.WithdrawNotFound,
	contract.RevertNotFundProposal:     core.WithdrawNotFunding,
	contract.RevertNotApprovedProposal: core.WithdrawNotApproved,
	contract.RevertNotAuthorized:       core.WithdrawNotAuthorized,
	contract.RevertNotReady:            core.WithdrawNotReady,
	contract.RevertAlreadyWithdrawn:    core.WithdrawAlready,
	contract.RevertNotEnoughBudget:     core.WithdrawNotEnoughFunds,
	contract.RevertE000:                core.WithdrawContractError,
	contract.RevertE001:                core.WithdrawStateError,
}

// WithdrawErrorMessage maps a failed withdraw call onto a message.
func WithdrawErrorMessage(err error) core.MessageID {
	if contract.IsUserRejected(err) {
		return core.AuthCancelInput
	}
	if id, ok := withdrawMessages[contract.Classify(err)]; ok {
		return id
	}
	return core.WalletExecutionError
}

type Outcome struct {
	Succeeded bool
	MessageID core.MessageID
	TxHash    common.Hash
}

type Coordinator struct {
	backend   Backend
	wallet    Wallet
	vote      Voting
	budget    Budget
	proposals Proposals
	identity  Identity
	logger    logrus.FieldLogger

	// Now is the clock used by the withdraw gate.
	Now func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	status   map[string]*core.VoteStatus
	receipts sync.WaitGroup
}

func NewCoordinator(b Backend, w Wallet, vote Voting, budget Budget, proposals Proposals, identity Identity, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		backend:   b,
		wallet:    w,
		vote:      vote,
		budget:    budget,
		proposals: proposals,
		identity:  identity,
		logger:    logger,
		Now:       time.Now,
		inFlight:  make(map[string]bool),
		status:    make(map[string]*core.VoteStatus),
	}
}

func (c *Coordinator) actor() string {
	if u := c.identity.User(); u != nil {
		return u.ID
	}
	return ""
}

// Status fetches the vote status of id for the signed-in member and caches it.
func (c *Coordinator) Status(ctx context.Context, id string) (*core.VoteStatus, error) {
	vs, err := c.backend.VoteStatus(ctx, id, c.actor())
	if err != nil {
		return nil, err
	}
	if vs == nil {
		return nil, errors.Errorf("no vote status for %s", id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.status[id] = vs
	c.mu.Unlock()
	cp := *vs
	return &cp, nil
}

func (c *Coordinator) Cached(id string) *core.VoteStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	vs, ok := c.status[id]
	if !ok {
		return nil
	}
	cp := *vs
	return &cp
}

// Validators lists the validators of a proposal with their assess and ballot flags.
func (c *Coordinator) Validators(ctx context.Context, id string, limit int) ([]backend.Validator, error) {
	if limit <= 0 {
		limit = DefaultValidatorLimit
	}
	return c.backend.ListValidators(ctx, id, limit)
}

// SubmitBallot casts choice on the current proposal. The backend issues the commitment and its
// signature, the chain stores the ballot, then the backend records it against the transaction.
func (c *Coordinator) SubmitBallot(ctx context.Context, choice core.Choice) Outcome {
	if choice > core.ChoiceAbstain {
		return Outcome{MessageID: core.InvalidInput}
	}
	p, err := c.proposals.RequireJoined()
	switch {
	case errors.Is(err, core.ErrNotJoined):
		return Outcome{MessageID: core.NotJoined}
	case err != nil:
		return Outcome{MessageID: core.InvalidInput}
	}
	state := c.wallet.State()
	switch state.Status {
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

	// eligibility comes from a fresh status, a cached one may predate the vote period
	vs, err := c.Status(ctx, p.ID)
	if err != nil {
		logger.Errorf("fetch vote status: %s", err)
		return Outcome{MessageID: core.SystemOther}
	}
	if !vs.IsValidVoter {
		return Outcome{MessageID: core.VoteNotValidator}
	}
	if p.Status != core.StatusVote || vs.VoteProposalState != core.VoteRunning {
		return Outcome{MessageID: core.VoteNotRunning}
	}

	proposalID, err := contract.ParseProposalID(p.ProposalID)
	if err != nil {
		logger.Errorf("ballot: %s", err)
		return Outcome{MessageID: core.InvalidInput}
	}

	address := state.Account.Hex()
	issued, err := c.backend.SubmitBallot(ctx, p.ID, address, choice)
	if err != nil {
		logger.Errorf("request ballot commitment: %s", err)
		return Outcome{MessageID: core.VoteGenericError}
	}
	if issued == nil || issued.Commitment == "" || issued.Signature == "" {
		logger.Error("backend returned no ballot commitment")
		return Outcome{MessageID: core.VoteGenericError}
	}
	commitment, signature, err := decodeCommitment(issued)
	if err != nil {
		logger.Errorf("ballot commitment: %s", err)
		return Outcome{MessageID: core.VoteGenericError}
	}

	opts, err := c.wallet.Transactor(ctx)
	if err != nil {
		return Outcome{MessageID: core.WalletNotConnected}
	}
	tx, err := c.vote.SubmitBallot(opts, proposalID, commitment, signature)
	if err != nil {
		if contract.IsUserRejected(err) {
			logger.Info("ballot canceled by user")
			return Outcome{MessageID: core.AuthCancelInput}
		}
		logger.Errorf("submit ballot transaction: %s", err)
		return Outcome{MessageID: core.WalletExecutionError}
	}
	hash := tx.Hash()
	logger = logger.WithField("tx", hash.Hex())

	receipt, err := c.wallet.WaitMined(ctx, tx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf("wait ballot transaction: %s", err)
		}
		return Outcome{MessageID: core.WalletExecutionError, TxHash: hash}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Error("ballot transaction reverted")
		return Outcome{MessageID: core.WalletExecutionError, TxHash: hash}
	}

	ballot, err := c.backend.RecordBallot(ctx, backend.RecordBallotInput{
		ProposalID: p.ID,
		Commitment: issued.Commitment,
		Address:    address,
		TxHash:     hash,
	})
	if err != nil || ballot == nil {
		// the chain already holds the ballot, nothing rolls it back
		logger.WithFields(logrus.Fields{
			"commitment": issued.Commitment,
			"address":    address,
		}).Errorf("orphaned ballot commitment: record failed: %v", err)
		return Outcome{MessageID: core.VoteRecordFailed, TxHash: hash}
	}

	c.updateReceipt(ctx, hash)

	if ctx.Err() == nil {
		c.mu.Lock()
		if cached, ok := c.status[p.ID]; ok {
			cached.NeedVote = false
		}
		c.mu.Unlock()
	}
	logger.WithField("ballot", ballot.ID).Info("ballot submitted")
	return Outcome{Succeeded: true, MessageID: core.VoteSubmitted, TxHash: hash}
}

// updateReceipt asks the backend to refresh the stored receipt. Nobody waits for it and it
// outlives ctx.
func (c *Coordinator) updateReceipt(ctx context.Context, hash common.Hash) {
	ctx = context.WithoutCancel(ctx)
	c.receipts.Add(1)
	go func() {
		defer c.receipts.Done()
		if err := c.backend.UpdateReceipt(ctx, hash); err != nil {
			c.logger.WithField("tx", hash.Hex()).Warnf("update receipt: %s", err)
		}
	}()
}

// Drain blocks until every pending receipt update has finished.
func (c *Coordinator) Drain() {
	c.receipts.Wait()
}

func decodeCommitment(issued *backend.BallotCommitment) ([32]byte, []byte, error) {
	var commitment [32]byte
	raw, err := hexutil.Decode(issued.Commitment)
	if err != nil || len(raw) != len(commitment) {
		return commitment, nil, errors.Errorf("invalid commitment %q", issued.Commitment)
	}
	copy(commitment[:], raw)
	signature, err := hexutil.Decode(issued.Signature)
	if err != nil {
		return commitment, nil, errors.Wrap(err, "invalid signature")
	}
	return commitment, signature, nil
}

// Withdraw pulls the approved funding of the current proposal into the proposer's account. Joining
// is not required, the proposer check is.
func (c *Coordinator) Withdraw(ctx context.Context) Outcome {
	p := c.proposals.Current()
	if p == nil {
		return Outcome{MessageID: core.InvalidInput}
	}
	if p.Type != core.BusinessProposal {
		return Outcome{MessageID: core.WithdrawNotFunding}
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

	vs, err := c.Status(ctx, p.ID)
	if err != nil {
		logger.Errorf("fetch vote status: %s", err)
		return Outcome{MessageID: core.SystemOther}
	}
	if !vs.IsProposer {
		return Outcome{MessageID: core.WithdrawNotProposer}
	}
	if gate := WithdrawGate(vs, c.Now()); !gate.Open {
		return Outcome{MessageID: gate.MessageID}
	}

	proposalID, err := contract.ParseProposalID(p.ProposalID)
	if err != nil {
		logger.Errorf("withdraw: %s", err)
		return Outcome{MessageID: core.InvalidInput}
	}
	opts, err := c.wallet.Transactor(ctx)
	if err != nil {
		return Outcome{MessageID: core.WalletNotConnected}
	}
	tx, err := c.budget.Withdraw(opts, proposalID)
	if err != nil {
		msg := WithdrawErrorMessage(err)
		if msg == core.AuthCancelInput {
			logger.Info("withdraw canceled by user")
		} else {
			logger.Errorf("withdraw transaction: %s", err)
		}
		return Outcome{MessageID: msg}
	}
	hash := tx.Hash()

	receipt, err := c.wallet.WaitMined(ctx, tx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf("wait withdraw transaction %s: %s", hash.Hex(), err)
		}
		return Outcome{MessageID: core.WalletExecutionError, TxHash: hash}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Errorf("withdraw transaction %s reverted", hash.Hex())
		return Outcome{MessageID: core.WalletExecutionError, TxHash: hash}
	}

	if _, err := c.Status(ctx, p.ID); err != nil && ctx.Err() == nil {
		logger.Warnf("refetch vote status: %s", err)
	}
	logger.WithField("tx", hash.Hex()).Info("funds withdrawn")
	return Outcome{Succeeded: true, MessageID: core.WithdrawDone, TxHash: hash}
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
