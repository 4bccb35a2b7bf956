// Package fee drives a proposal from Created to Paid: it submits the signed creation call and
// reconciles the chain confirmation with the backend's fee status.
package fee

import (
	"context"
	"sync"
	"time"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Backend interface {
	FeeQuote(ctx context.Context, id string) (*core.ProposalFeeQuote, error)
	CheckProposalFee(ctx context.Context, id string, txHash common.Hash) (core.FeeStatus, error)
}

type Wallet interface {
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
	UpdateBalance(ctx context.Context, tx *types.Transaction) error
}

// Budget is the CommonsBudget surface used to create proposals.
type Budget interface {
	CreateFundProposal(opts *bind.TransactOpts, in contract.FundProposalInput) (*types.Transaction, error)
	CreateSystemProposal(opts *bind.TransactOpts, in contract.SystemProposalInput) (*types.Transaction, error)
}

// BudgetBinder binds the budget contract at the destination named by a quote.
type BudgetBinder func(address common.Address) Budget

func ContractBinder(backend bind.ContractBackend) BudgetBinder {
	return func(address common.Address) Budget {
		return contract.NewCommonsBudget(address, backend)
	}
}

var (
	_ Backend = (*backend.Client)(nil)
	_ Wallet  = (*wallet.Connection)(nil)
	_ Budget  = (*contract.CommonsBudget)(nil)
)

var revertMessages = map[contract.RevertCode]core.MessageID{
	contract.RevertAlreadyExistProposal: core.FeeAlreadyExist,
	contract.RevertInvalidFee:           core.FeeInvalidFee,
	contract.RevertNotEnoughBudget:      core.FeeNotEnoughBudget,
	contract.RevertNotAuthorized:        core.FeeNotAuthorized,
	contract.RevertInvalidInput:         core.FeeInvalidInput,
	contract.RevertNotReady:             core.FeeNotReady,
	contract.RevertE000:                 core.FeeContractError,
	contract.RevertE001:                 core.FeeContractStateError,
}

// SubmitErrorMessage maps a failed creation call onto a message.
func SubmitErrorMessage(err error) core.MessageID {
	if contract.IsUserRejected(err) {
		return core.AuthCancelInput
	}
	if id, ok := revertMessages[contract.Classify(err)]; ok {
		return id
	}
	return core.WalletExecutionError
}

// StatusMessage is the notice shown for a fee status, MessageNone while waiting.
func StatusMessage(status core.FeeStatus) core.MessageID {
	switch status {
	case core.FeePaid:
		return core.FeePaidNotice
	case core.FeeMining:
		return core.FeeMiningNotice
	case core.FeeExpired:
		return core.FeeExpiredQuote
	case core.FeeInvalid, core.FeeIrrelevant, core.FeeUnknown:
		return core.FeeInvalidQuote
	}
	return core.MessageNone
}

type Outcome struct {
	Succeeded bool
	MessageID core.MessageID
	TxHash    common.Hash
	Status    core.FeeStatus
}

type Coordinator struct {
	backend Backend
	wallet  Wallet
	bind    BudgetBinder
	logger  logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[string]bool
	status   map[string]core.FeeStatus
	notified map[string]bool
	onPaid   []func(id string)
}

func NewCoordinator(b Backend, w Wallet, binder BudgetBinder, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		backend:  b,
		wallet:   w,
		bind:     binder,
		logger:   logger,
		inFlight: make(map[string]bool),
		status:   make(map[string]core.FeeStatus),
		notified: make(map[string]bool),
	}
}

// OnPaid registers fn for the paid notification. It fires once per proposal.
func (c *Coordinator) OnPaid(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPaid = append(c.onPaid, fn)
}

func (c *Coordinator) Status(id string) core.FeeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[id]
}

// Pay submits the creation call for p and waits until both the backend check and the chain
// confirmation have been reconciled.
func (c *Coordinator) Pay(ctx context.Context, p *core.Proposal) Outcome {
	if p == nil {
		return Outcome{MessageID: core.InvalidInput}
	}
	if !c.acquire(p.ID) {
		return Outcome{MessageID: core.Busy}
	}
	defer c.release(p.ID)

	logger := c.logger.WithField("proposal", p.ID)

	quote, err := c.backend.FeeQuote(ctx, p.ID)
	if err != nil {
		logger.Errorf("fetch fee quote: %s", err)
		return Outcome{MessageID: core.SystemOther}
	}
	if quote == nil {
		return Outcome{MessageID: core.FeeInvalidQuote}
	}
	if ctx.Err() != nil {
		return Outcome{MessageID: core.MessageNone}
	}
	c.Reconcile(p.ID, quote.Status)

	switch quote.Status {
	case core.FeePaid, core.FeeMining:
		// already submitted, never pay twice
		return Outcome{Succeeded: true, MessageID: StatusMessage(quote.Status), Status: quote.Status}
	case core.FeeExpired, core.FeeInvalid, core.FeeIrrelevant:
		return Outcome{MessageID: StatusMessage(quote.Status), Status: quote.Status}
	case core.FeeUnknown:
		logger.Warn("fee quote has an unrecognized status, not paying")
		return Outcome{MessageID: StatusMessage(quote.Status), Status: quote.Status}
	}

	if quote.Destination == (common.Address{}) || len(quote.Signature) == 0 {
		logger.Warn("fee quote has no destination or signature")
		return Outcome{Status: quote.Status}
	}

	tx, msg := c.submit(ctx, p, quote)
	if tx == nil {
		if msg == core.AuthCancelInput {
			logger.Info("fee payment canceled by user")
		}
		return Outcome{MessageID: msg, Status: quote.Status}
	}
	hash := tx.Hash()
	logger.WithField("tx", hash.Hex()).Info("fee transaction submitted")

	c.reconcileBoth(ctx, p.ID, tx)

	status := c.Status(p.ID)
	msg = StatusMessage(status)
	if msg == core.MessageNone {
		msg = core.FeeMiningNotice
	}
	return Outcome{Succeeded: true, MessageID: msg, TxHash: hash, Status: status}
}

func (c *Coordinator) submit(ctx context.Context, p *core.Proposal, quote *core.ProposalFeeQuote) (*types.Transaction, core.MessageID) {
	opts, err := c.wallet.Transactor(ctx)
	switch {
	case errors.Is(err, core.ErrOtherChain):
		return nil, core.WalletOtherChain
	case err != nil:
		return nil, core.WalletNotConnected
	}

	onChainID := quote.ProposalID
	if onChainID == "" {
		onChainID = p.ProposalID
	}
	proposalID, err := contract.ParseProposalID(onChainID)
	if err != nil {
		c.logger.Errorf("fee quote: %s", err)
		return nil, core.FeeInvalidQuote
	}
	opts.Value = quote.FeeAmount

	budget := c.bind(quote.Destination)
	var tx *types.Transaction
	if p.Type == core.SystemProposal {
		tx, err = budget.CreateSystemProposal(opts, contract.SystemProposalInput{
			ProposalID: proposalID,
			Title:      quote.Title,
			Start:      quote.Start,
			End:        quote.End,
			DocHash:    quote.DocHash,
			Signature:  quote.Signature,
		})
	} else {
		tx, err = budget.CreateFundProposal(opts, contract.FundProposalInput{
			ProposalID:  proposalID,
			Title:       quote.Title,
			Start:       quote.Start,
			End:         quote.End,
			StartAssess: quote.StartAssess,
			EndAssess:   quote.EndAssess,
			DocHash:     quote.DocHash,
			Amount:      quote.Amount,
			Signature:   quote.Signature,
		})
	}
	if err != nil {
		msg := SubmitErrorMessage(err)
		if msg != core.AuthCancelInput {
			c.logger.WithField("proposal", p.ID).Errorf("fee transaction: %s", err)
		}
		return nil, msg
	}
	return tx, core.MessageNone
}

// reconcileBoth runs the two triggers: the backend check and the chain confirmation. Either may
// finish first, both end in Refresh.
func (c *Coordinator) reconcileBoth(ctx context.Context, id string, tx *types.Transaction) {
	logger := c.logger.WithField("proposal", id)
	hash := tx.Hash()

	var g errgroup.Group
	g.Go(func() error {
		status, err := c.backend.CheckProposalFee(ctx, id, hash)
		if err != nil {
			logger.Warnf("check proposal fee: %s", err)
		} else if ctx.Err() == nil {
			c.Reconcile(id, status)
		}
		if _, err := c.Refresh(ctx, id); err != nil && ctx.Err() == nil {
			logger.Warnf("refresh fee after check: %s", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.wallet.UpdateBalance(ctx, tx); err != nil {
			if ctx.Err() == nil {
				logger.Warnf("wait fee transaction: %s", err)
			}
			return nil
		}
		if _, err := c.Refresh(ctx, id); err != nil && ctx.Err() == nil {
			logger.Warnf("refresh fee after confirmation: %s", err)
		}
		return nil
	})
	_ = g.Wait()
}

// Refresh fetches the quote and reconciles its status.
func (c *Coordinator) Refresh(ctx context.Context, id string) (core.FeeStatus, error) {
	quote, err := c.backend.FeeQuote(ctx, id)
	if err != nil {
		return c.Status(id), err
	}
	if err := ctx.Err(); err != nil {
		return c.Status(id), err
	}
	if quote == nil {
		return c.Status(id), errors.New("no fee quote")
	}
	c.Reconcile(id, quote.Status)
	return quote.Status, nil
}

// Reconcile records an observed fee status. It is idempotent: the paid notification fires the first
// time Paid is seen for id and never again. It reports whether it fired.
func (c *Coordinator) Reconcile(id string, status core.FeeStatus) bool {
	if status == core.FeeUnknown {
		return false
	}
	c.mu.Lock()
	if c.status[id] == core.FeePaid {
		c.mu.Unlock()
		return false
	}
	c.status[id] = status
	fire := status == core.FeePaid && !c.notified[id]
	if fire {
		c.notified[id] = true
	}
	listeners := append([]func(string){}, c.onPaid...)
	c.mu.Unlock()

	if !fire {
		return false
	}
	c.logger.WithField("proposal", id).Info("proposal fee paid")
	for _, fn := range listeners {
		fn(id)
	}
	return true
}

// Poll refreshes every interval until the status is terminal or ctx is done.
func (c *Coordinator) Poll(ctx context.Context, id string, interval time.Duration) (core.FeeStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.Refresh(ctx, id)
		if err != nil && ctx.Err() == nil {
			c.logger.WithField("proposal", id).Warnf("poll fee: %s", err)
		}
		if status.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return c.Status(id), ctx.Err()
		case <-ticker.C:
		}
	}
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
