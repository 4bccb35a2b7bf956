package fee

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onChainID = "0x1111111111111111111111111111111111111111111111111111111111111111"

var destination = common.HexToAddress("0x00000000000000000000000000000000000000bb")

type fakeBackend struct {
	mu         sync.Mutex
	status     core.FeeStatus
	checked    core.FeeStatus
	quoteCalls int
	checks     []common.Hash
	quoteErr   error
	noSigner   bool
}

func (b *fakeBackend) FeeQuote(ctx context.Context, id string) (*core.ProposalFeeQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quoteCalls++
	if b.quoteErr != nil {
		return nil, b.quoteErr
	}
	q := &core.ProposalFeeQuote{
		ProposalID:  onChainID,
		Start:       100,
		End:         200,
		StartAssess: 10,
		EndAssess:   20,
		Amount:      big.NewInt(5000),
		Title:       "title",
		Signature:   []byte{1, 2, 3},
		FeeAmount:   big.NewInt(7),
		Destination: destination,
		Status:      b.status,
	}
	if b.noSigner {
		q.Signature = nil
	}
	return q, nil
}

func (b *fakeBackend) CheckProposalFee(ctx context.Context, id string, txHash common.Hash) (core.FeeStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks = append(b.checks, txHash)
	if b.status != core.FeePaid {
		b.status = b.checked
	}
	return b.status, nil
}

func (b *fakeBackend) setStatus(s core.FeeStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

type fakeWallet struct {
	err       error
	confirmed chan struct{}
	onConfirm func()
	balances  int
}

func (w *fakeWallet) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &bind.TransactOpts{From: common.HexToAddress("0xaa"), Context: ctx}, nil
}

func (w *fakeWallet) UpdateBalance(ctx context.Context, tx *types.Transaction) error {
	if w.confirmed != nil {
		select {
		case <-w.confirmed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if w.onConfirm != nil {
		w.onConfirm()
	}
	w.balances++
	return nil
}

type fakeBudget struct {
	mu     sync.Mutex
	err    error
	fund   []contract.FundProposalInput
	system []contract.SystemProposalInput
	values []*big.Int
}

func (b *fakeBudget) CreateFundProposal(opts *bind.TransactOpts, in contract.FundProposalInput) (*types.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.fund = append(b.fund, in)
	b.values = append(b.values, opts.Value)
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(b.fund))}), nil
}

func (b *fakeBudget) CreateSystemProposal(opts *bind.TransactOpts, in contract.SystemProposalInput) (*types.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.system = append(b.system, in)
	b.values = append(b.values, opts.Value)
	return types.NewTx(&types.LegacyTx{Nonce: 100 + uint64(len(b.system))}), nil
}

func (b *fakeBudget) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fund) + len(b.system)
}

func newCoordinator(b *fakeBackend, w *fakeWallet, budget *fakeBudget) (*Coordinator, *int) {
	c := NewCoordinator(b, w, func(address common.Address) Budget { return budget }, log.New())
	paid := 0
	c.OnPaid(func(id string) { paid++ })
	return c, &paid
}

func businessProposal() *core.Proposal {
	return &core.Proposal{ID: "p1", Type: core.BusinessProposal, Status: core.StatusCreated}
}

func TestPayBusinessProposal(t *testing.T) {
	b := &fakeBackend{status: core.FeeWait, checked: core.FeeMining}
	w := &fakeWallet{}
	w.onConfirm = func() { b.setStatus(core.FeePaid) }
	budget := &fakeBudget{}
	c, paid := newCoordinator(b, w, budget)

	out := c.Pay(context.Background(), businessProposal())
	require.True(t, out.Succeeded, out.MessageID)
	assert.Equal(t, core.FeePaid, out.Status)
	assert.Equal(t, core.FeePaidNotice, out.MessageID)
	assert.NotEqual(t, common.Hash{}, out.TxHash)

	require.Len(t, budget.fund, 1)
	assert.Empty(t, budget.system)
	assert.Equal(t, int64(5000), budget.fund[0].Amount.Int64())
	assert.Equal(t, uint64(10), budget.fund[0].StartAssess)
	assert.Equal(t, byte(0x11), budget.fund[0].ProposalID[0])
	assert.Equal(t, int64(7), budget.values[0].Int64())

	assert.Equal(t, []common.Hash{out.TxHash}, b.checks)
	assert.Equal(t, 1, w.balances)
	assert.Equal(t, 1, *paid)
}

func TestPaySystemProposal(t *testing.T) {
	b := &fakeBackend{status: core.FeeWait, checked: core.FeeMining}
	budget := &fakeBudget{}
	c, paid := newCoordinator(b, &fakeWallet{}, budget)

	p := businessProposal()
	p.Type = core.SystemProposal
	out := c.Pay(context.Background(), p)
	require.True(t, out.Succeeded)
	assert.Equal(t, core.FeeMiningNotice, out.MessageID)
	assert.Len(t, budget.system, 1)
	assert.Empty(t, budget.fund)
	assert.Equal(t, 0, *paid)
}

func TestPayDoesNotResubmit(t *testing.T) {
	for _, status := range []core.FeeStatus{core.FeeMining, core.FeePaid, core.FeeExpired, core.FeeInvalid, core.FeeIrrelevant} {
		b := &fakeBackend{status: status}
		budget := &fakeBudget{}
		c, _ := newCoordinator(b, &fakeWallet{}, budget)

		out := c.Pay(context.Background(), businessProposal())
		assert.Equal(t, StatusMessage(status), out.MessageID, status.String())
		assert.Equal(t, 0, budget.calls(), status.String())
	}
}

func TestPayRefusesUnknownStatus(t *testing.T) {
	b := &fakeBackend{status: core.ParseFeeStatus("REFUNDED")}
	budget := &fakeBudget{}
	c, _ := newCoordinator(b, &fakeWallet{}, budget)

	out := c.Pay(context.Background(), businessProposal())
	assert.False(t, out.Succeeded)
	assert.Equal(t, core.FeeInvalidQuote, out.MessageID)
	assert.Equal(t, core.FeeUnknown, out.Status)
	assert.Equal(t, 0, budget.calls())

	c.Reconcile("p1", core.FeeMining)
	assert.False(t, c.Reconcile("p1", core.FeeUnknown))
	assert.Equal(t, core.FeeMining, c.Status("p1"))
}

func TestPayWithoutSigner(t *testing.T) {
	b := &fakeBackend{status: core.FeeWait, noSigner: true}
	budget := &fakeBudget{}
	c, _ := newCoordinator(b, &fakeWallet{}, budget)

	out := c.Pay(context.Background(), businessProposal())
	assert.False(t, out.Succeeded)
	assert.Equal(t, core.MessageNone, out.MessageID)
	assert.Equal(t, 0, budget.calls())
}

func TestPayWalletStates(t *testing.T) {
	b := &fakeBackend{status: core.FeeWait}
	c, _ := newCoordinator(b, &fakeWallet{err: core.ErrOtherChain}, &fakeBudget{})
	assert.Equal(t, core.WalletOtherChain, c.Pay(context.Background(), businessProposal()).MessageID)

	c, _ = newCoordinator(b, &fakeWallet{err: core.ErrWalletNotConnected}, &fakeBudget{})
	assert.Equal(t, core.WalletNotConnected, c.Pay(context.Background(), businessProposal()).MessageID)
}

func TestPayRevertMessages(t *testing.T) {
	tests := []struct {
		err  error
		want core.MessageID
	}{
		{errors.New("execution reverted: AlreadyExistProposal"), core.FeeAlreadyExist},
		{errors.New("execution reverted: InvalidFee"), core.FeeInvalidFee},
		{errors.New("execution reverted: NotEnoughBudget"), core.FeeNotEnoughBudget},
		{errors.New("execution reverted: NotAuthorized"), core.FeeNotAuthorized},
		{errors.New("execution reverted: InvalidInput"), core.FeeInvalidInput},
		{errors.New("execution reverted: NotReady"), core.FeeNotReady},
		{errors.New("execution reverted: E000"), core.FeeContractError},
		{errors.New("execution reverted: E001"), core.FeeContractStateError},
		{errors.New("execution reverted: AlreadyWithdrawn"), core.WalletExecutionError},
		{errors.New("insufficient funds for gas * price + value"), core.WalletExecutionError},
		{core.ErrUserRejected, core.AuthCancelInput},
	}
	for _, tt := range tests {
		b := &fakeBackend{status: core.FeeWait}
		c, paid := newCoordinator(b, &fakeWallet{}, &fakeBudget{err: tt.err})
		out := c.Pay(context.Background(), businessProposal())
		assert.False(t, out.Succeeded)
		assert.Equal(t, tt.want, out.MessageID, tt.err.Error())
		assert.Empty(t, b.checks)
		assert.Equal(t, 0, *paid)
	}
}

func TestPayInFlight(t *testing.T) {
	b := &fakeBackend{status: core.FeeWait, checked: core.FeeMining}
	w := &fakeWallet{confirmed: make(chan struct{})}
	budget := &fakeBudget{}
	c, _ := newCoordinator(b, w, budget)

	done := make(chan Outcome)
	go func() { done <- c.Pay(context.Background(), businessProposal()) }()

	require.Eventually(t, func() bool { return budget.calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, core.Busy, c.Pay(context.Background(), businessProposal()).MessageID)

	close(w.confirmed)
	out := <-done
	assert.True(t, out.Succeeded)
	assert.Equal(t, 1, budget.calls())
}

func TestPayCanceledWhileWaiting(t *testing.T) {
	b := &fakeBackend{status: core.FeeWait, checked: core.FeeMining}
	w := &fakeWallet{confirmed: make(chan struct{})}
	budget := &fakeBudget{}
	c, paid := newCoordinator(b, w, budget)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome)
	go func() { done <- c.Pay(ctx, businessProposal()) }()

	require.Eventually(t, func() bool { return budget.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	b.setStatus(core.FeePaid)
	<-done
	assert.Equal(t, 0, *paid)
}

func TestReconcileNotifiesPaidOnce(t *testing.T) {
	b := &fakeBackend{status: core.FeeMining}
	c, paid := newCoordinator(b, &fakeWallet{}, &fakeBudget{})

	assert.False(t, c.Reconcile("p1", core.FeeMining))
	assert.True(t, c.Reconcile("p1", core.FeePaid))

	b.setStatus(core.FeePaid)
	status, err := c.Refresh(context.Background(), "p1")
	require.Nil(t, err)
	assert.Equal(t, core.FeePaid, status)
	assert.False(t, c.Reconcile("p1", core.FeePaid))
	assert.False(t, c.Reconcile("p1", core.FeeMining))

	assert.Equal(t, 1, *paid)
	assert.Equal(t, core.FeePaid, c.Status("p1"))
}

func TestPoll(t *testing.T) {
	b := &fakeBackend{status: core.FeeMining}
	c, paid := newCoordinator(b, &fakeWallet{}, &fakeBudget{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.setStatus(core.FeePaid)
	}()
	status, err := c.Poll(context.Background(), "p1", 5*time.Millisecond)
	require.Nil(t, err)
	assert.Equal(t, core.FeePaid, status)
	assert.Equal(t, 1, *paid)

	b.setStatus(core.FeeWait)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Poll(ctx, "p2", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
