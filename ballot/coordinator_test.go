package ballot

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	onChainID  = "0x3333333333333333333333333333333333333333333333333333333333333333"
	commitment = "0x4444444444444444444444444444444444444444444444444444444444444444"
	signature  = "0x1234"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

type fakeBackend struct {
	*recorder
	status    core.VoteStatus
	issued    *backend.BallotCommitment
	ballot    *backend.Ballot
	recordErr error
	recorded  []backend.RecordBallotInput
}

func (b *fakeBackend) VoteStatus(ctx context.Context, id, actor string) (*core.VoteStatus, error) {
	b.add("status")
	vs := b.status
	return &vs, nil
}

func (b *fakeBackend) SubmitBallot(ctx context.Context, proposalID, address string, choice core.Choice) (*backend.BallotCommitment, error) {
	b.add("commitment")
	return b.issued, nil
}

func (b *fakeBackend) RecordBallot(ctx context.Context, in backend.RecordBallotInput) (*backend.Ballot, error) {
	b.add("record")
	b.recorded = append(b.recorded, in)
	return b.ballot, b.recordErr
}

func (b *fakeBackend) UpdateReceipt(ctx context.Context, txHash common.Hash) error {
	b.add("receipt")
	return ctx.Err()
}

func (b *fakeBackend) ListValidators(ctx context.Context, proposalID string, limit int) ([]backend.Validator, error) {
	return make([]backend.Validator, 2), nil
}

type fakeWallet struct {
	*recorder
	status        wallet.Status
	receiptStatus uint64
}

func (w *fakeWallet) State() wallet.State {
	return wallet.State{Status: w.status, Account: common.HexToAddress("0xabc"), ChainID: big.NewInt(2019)}
}

func (w *fakeWallet) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{}, nil
}

func (w *fakeWallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	w.add("wait")
	return &types.Receipt{TxHash: tx.Hash(), Status: w.receiptStatus}, nil
}

type fakeChain struct {
	*recorder
	err        error
	commitment [32]byte
}

func (f *fakeChain) SubmitBallot(opts *bind.TransactOpts, proposalID [32]byte, commitment [32]byte, signature []byte) (*types.Transaction, error) {
	f.add("chain")
	if f.err != nil {
		return nil, f.err
	}
	f.commitment = commitment
	return types.NewTx(&types.LegacyTx{Nonce: 2}), nil
}

func (f *fakeChain) Withdraw(opts *bind.TransactOpts, proposalID [32]byte) (*types.Transaction, error) {
	f.add("withdraw")
	if f.err != nil {
		return nil, f.err
	}
	return types.NewTx(&types.LegacyTx{Nonce: 3}), nil
}

type fakeProposals struct {
	p      *core.Proposal
	joined bool
}

func (f *fakeProposals) Current() *core.Proposal {
	if f.p == nil {
		return nil
	}
	cp := *f.p
	return &cp
}

func (f *fakeProposals) RequireJoined() (*core.Proposal, error) {
	if f.p == nil {
		return nil, core.ErrProposalNotLoaded
	}
	if !f.joined {
		return nil, core.ErrNotJoined
	}
	return f.Current(), nil
}

type identity struct{}

func (identity) User() *core.User {
	return &core.User{ID: "member"}
}

type fixture struct {
	rec       *recorder
	backend   *fakeBackend
	wallet    *fakeWallet
	chain     *fakeChain
	proposals *fakeProposals
	c         *Coordinator
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		rec: rec,
		backend: &fakeBackend{
			recorder: rec,
			status:   core.VoteStatus{IsValidVoter: true, NeedVote: true, VoteProposalState: core.VoteRunning},
			issued:   &backend.BallotCommitment{Commitment: commitment, Signature: signature},
			ballot:   &backend.Ballot{ID: "b1"},
		},
		wallet:    &fakeWallet{recorder: rec, status: wallet.Connected, receiptStatus: types.ReceiptStatusSuccessful},
		chain:     &fakeChain{recorder: rec},
		proposals: &fakeProposals{p: &core.Proposal{ID: "p1", ProposalID: onChainID, Status: core.StatusVote}, joined: true},
	}
	f.c = NewCoordinator(f.backend, f.wallet, f.chain, f.chain, f.proposals, identity{}, log.New())
	return f
}

func TestSubmitBallot(t *testing.T) {
	f := newFixture()

	out := f.c.SubmitBallot(context.Background(), core.ChoiceNo)
	f.c.Drain()
	require.True(t, out.Succeeded, out.MessageID)
	assert.Equal(t, core.VoteSubmitted, out.MessageID)
	assert.Equal(t, []string{"status", "commitment", "chain", "wait", "record", "receipt"}, f.rec.list())
	assert.Equal(t, common.HexToHash(commitment), common.Hash(f.chain.commitment))

	require.Len(t, f.backend.recorded, 1)
	assert.Equal(t, out.TxHash, f.backend.recorded[0].TxHash)
	assert.Equal(t, commitment, f.backend.recorded[0].Commitment)
	assert.False(t, f.c.Cached("p1").NeedVote)
}

func TestSubmitBallotRecordFailure(t *testing.T) {
	f := newFixture()
	f.backend.ballot = nil

	out := f.c.SubmitBallot(context.Background(), core.ChoiceYes)
	f.c.Drain()
	assert.False(t, out.Succeeded)
	assert.Equal(t, core.VoteRecordFailed, out.MessageID)
	assert.NotEqual(t, common.Hash{}, out.TxHash)
	assert.NotContains(t, f.rec.list(), "receipt")

	f = newFixture()
	f.backend.recordErr = errors.New("boom")
	assert.Equal(t, core.VoteRecordFailed, f.c.SubmitBallot(context.Background(), core.ChoiceYes).MessageID)
}

func TestSubmitBallotRecordFailureProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("a missing ballot never succeeds", prop.ForAll(
		func(choice uint8, withErr bool) bool {
			f := newFixture()
			f.backend.ballot = nil
			if withErr {
				f.backend.recordErr = errors.New("boom")
			}
			out := f.c.SubmitBallot(context.Background(), core.Choice(choice))
			return !out.Succeeded && out.MessageID == core.VoteRecordFailed
		},
		gen.UInt8Range(0, uint8(core.ChoiceAbstain)),
		gen.Bool(),
	))
	properties.TestingRun(t)
}

func TestSubmitBallotCommitmentMissing(t *testing.T) {
	for _, issued := range []*backend.BallotCommitment{
		nil,
		{Signature: signature},
		{Commitment: commitment},
		{Commitment: "0x12", Signature: signature},
	} {
		f := newFixture()
		f.backend.issued = issued
		out := f.c.SubmitBallot(context.Background(), core.ChoiceYes)
		assert.Equal(t, core.VoteGenericError, out.MessageID)
		assert.NotContains(t, f.rec.list(), "chain")
	}
}

func TestSubmitBallotPreconditions(t *testing.T) {
	f := newFixture()
	f.proposals.joined = false
	assert.Equal(t, core.NotJoined, f.c.SubmitBallot(context.Background(), core.ChoiceYes).MessageID)

	f = newFixture()
	assert.Equal(t, core.InvalidInput, f.c.SubmitBallot(context.Background(), core.Choice(7)).MessageID)

	f = newFixture()
	f.wallet.status = wallet.OtherChain
	assert.Equal(t, core.WalletOtherChain, f.c.SubmitBallot(context.Background(), core.ChoiceYes).MessageID)

	f = newFixture()
	f.backend.status.IsValidVoter = false
	assert.Equal(t, core.VoteNotValidator, f.c.SubmitBallot(context.Background(), core.ChoiceYes).MessageID)

	f = newFixture()
	f.backend.status.VoteProposalState = core.VoteApproved
	assert.Equal(t, core.VoteNotRunning, f.c.SubmitBallot(context.Background(), core.ChoiceYes).MessageID)

	f = newFixture()
	f.chain.err = core.ErrUserRejected
	assert.Equal(t, core.AuthCancelInput, f.c.SubmitBallot(context.Background(), core.ChoiceYes).MessageID)
	assert.NotContains(t, f.rec.list(), "record")
}

func TestSubmitBallotRefreshesStatus(t *testing.T) {
	f := newFixture()
	_, err := f.c.Status(context.Background(), "p1")
	require.Nil(t, err)

	// the member lost validator rights after the status was cached
	f.backend.status.IsValidVoter = false
	out := f.c.SubmitBallot(context.Background(), core.ChoiceYes)
	assert.Equal(t, core.VoteNotValidator, out.MessageID)
	assert.Equal(t, []string{"status", "status"}, f.rec.list())
}

func TestSubmitBallotReceiptOutlivesCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.c.SubmitBallot(ctx, core.ChoiceYes)
	cancel()
	f.c.Drain()
	assert.Contains(t, f.rec.list(), "receipt")
}

func TestWithdrawGate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	gate := WithdrawGate(&core.VoteStatus{VoteProposalState: core.VoteApproved, CanWithdrawAt: now.Unix() + 90}, now)
	assert.False(t, gate.Open)
	assert.Equal(t, core.WithdrawCountdown, gate.MessageID)
	assert.Equal(t, 90*time.Second, gate.Remaining)

	gate = WithdrawGate(&core.VoteStatus{VoteProposalState: core.VoteApproved, CanWithdrawAt: now.Unix() - 1}, now)
	assert.True(t, gate.Open)
	assert.Zero(t, gate.Remaining)

	assert.Equal(t, core.WithdrawNotApproved, WithdrawGate(nil, now).MessageID)
	assert.Equal(t, core.WithdrawNotApproved, WithdrawGate(&core.VoteStatus{VoteProposalState: core.VoteRejected}, now).MessageID)
	assert.Equal(t, core.WithdrawAlready, WithdrawGate(&core.VoteStatus{VoteProposalState: core.VoteWithdrawn}, now).MessageID)
}

func TestWithdrawGateProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("open exactly when now reached canWithdrawAt", prop.ForAll(
		func(now, at int64) bool {
			gate := WithdrawGate(&core.VoteStatus{VoteProposalState: core.VoteApproved, CanWithdrawAt: at}, time.Unix(now, 0))
			return gate.Open == (now >= at)
		},
		gen.Int64Range(0, 1<<32),
		gen.Int64Range(0, 1<<32),
	))
	properties.TestingRun(t)
}

func approved(f *fixture, at time.Time) {
	f.proposals.p.Status = core.StatusClosed
	f.backend.status = core.VoteStatus{IsProposer: true, VoteProposalState: core.VoteApproved, CanWithdrawAt: at.Unix()}
}

func TestWithdraw(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := newFixture()
	f.c.Now = func() time.Time { return now }
	approved(f, now.Add(-time.Second))

	out := f.c.Withdraw(context.Background())
	require.True(t, out.Succeeded, out.MessageID)
	assert.Equal(t, core.WithdrawDone, out.MessageID)
	assert.Equal(t, []string{"status", "withdraw", "wait", "status"}, f.rec.list())
}

func TestWithdrawWithoutJoining(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := newFixture()
	f.c.Now = func() time.Time { return now }
	f.proposals.joined = false
	approved(f, now.Add(-time.Second))

	out := f.c.Withdraw(context.Background())
	require.True(t, out.Succeeded, out.MessageID)
	assert.Equal(t, core.WithdrawDone, out.MessageID)

	f = newFixture()
	f.proposals.p = nil
	assert.Equal(t, core.InvalidInput, f.c.Withdraw(context.Background()).MessageID)
	assert.Empty(t, f.rec.list())
}

func TestWithdrawBlocked(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := newFixture()
	f.c.Now = func() time.Time { return now }
	approved(f, now.Add(time.Minute))
	assert.Equal(t, core.WithdrawCountdown, f.c.Withdraw(context.Background()).MessageID)
	assert.NotContains(t, f.rec.list(), "withdraw")

	f = newFixture()
	f.c.Now = func() time.Time { return now }
	approved(f, now)
	f.backend.status.IsProposer = false
	assert.Equal(t, core.WithdrawNotProposer, f.c.Withdraw(context.Background()).MessageID)

	f = newFixture()
	f.proposals.p.Type = core.SystemProposal
	assert.Equal(t, core.WithdrawNotFunding, f.c.Withdraw(context.Background()).MessageID)
}

func TestWithdrawRevert(t *testing.T) {
	tests := []struct {
		err  error
		want core.MessageID
	}{
		{errors.New("execution reverted: NotFoundProposal"), core.WithdrawNotFound},
		{errors.New("execution reverted: NotFundProposal"), core.WithdrawNotFunding},
		{errors.New("execution reverted: NotAuthorized"), core.WithdrawNotAuthorized},
		{errors.New("execution reverted: NotReady"), core.WithdrawNotReady},
		{errors.New("execution reverted: AlreadyWithdrawn"), core.WithdrawAlready},
		{errors.New("execution reverted: NotEnoughBudget"), core.WithdrawNotEnoughFunds},
		{errors.New("execution reverted: NotApprovedProposal"), core.WithdrawNotApproved},
		{errors.New("execution reverted: E000"), core.WithdrawContractError},
		{errors.New("execution reverted: E001"), core.WithdrawStateError},
		{errors.New("execution reverted: Other"), core.WalletExecutionError},
		{core.ErrUserRejected, core.AuthCancelInput},
	}
	now := time.Unix(1_700_000_000, 0)
	for _, tt := range tests {
		assert.Equal(t, tt.want, WithdrawErrorMessage(tt.err), tt.err.Error())

		f := newFixture()
		f.c.Now = func() time.Time { return now }
		approved(f, now)
		f.chain.err = tt.err
		out := f.c.Withdraw(context.Background())
		assert.False(t, out.Succeeded)
		assert.Equal(t, tt.want, out.MessageID)
	}
}

func TestValidators(t *testing.T) {
	f := newFixture()
	validators, err := f.c.Validators(context.Background(), "p1", 0)
	require.Nil(t, err)
	assert.Len(t, validators, 2)
}
