// Package wallet tracks the user's wallet: which account and chain it exposes, its balance, and
// what it can sign or send.
package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrNoTargetChain = errors.New("no target chain configured")

type Status uint8

const (
	Initializing Status = iota
	Unavailable
	NotConnected
	Connecting
	OtherChain
	Connected
)

func (s Status) String() string {
	switch s {
	case Unavailable:
		return "unavailable"
	case NotConnected:
		return "not-connected"
	case Connecting:
		return "connecting"
	case OtherChain:
		return "other-chain"
	case Connected:
		return "connected"
	}
	return "initializing"
}

// Provider is the wallet capability: an account holder attached to a chain endpoint.
type Provider interface {
	core.Client

	// RequestAccounts asks the user to expose accounts. A refusal is core.ErrUserRejected.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Accounts returns the accounts already exposed, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)

	SignTypedData(ctx context.Context, account common.Address, td apitypes.TypedData) ([]byte, error)

	NewTransactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error)

	SwitchChain(ctx context.Context, chainID *big.Int) error
}

var _ bind.DeployBackend = Provider(nil)

// ChangeNotifier is implemented by providers that report account or chain changes.
type ChangeNotifier interface {
	Changed() <-chan struct{}
}

type State struct {
	Status  Status
	Account common.Address
	ChainID *big.Int
	Balance *big.Int
}

type Connection struct {
	provider Provider
	target   *big.Int
	logger   logrus.FieldLogger

	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

// NewConnection wraps provider. target is the chain the server runs on, nil disables the chain check.
func NewConnection(provider Provider, target *big.Int, logger logrus.FieldLogger) *Connection {
	c := &Connection{
		provider: provider,
		target:   target,
		logger:   logger,
		state:    State{Status: Initializing},
	}
	if provider == nil {
		c.state.Status = Unavailable
	}
	return c
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if s.ChainID != nil {
		s.ChainID = new(big.Int).Set(s.ChainID)
	}
	if s.Balance != nil {
		s.Balance = new(big.Int).Set(s.Balance)
	}
	return s
}

func (c *Connection) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Connect asks the wallet for an account. A refusal or failure leaves the connection NotConnected and
// is only logged.
func (c *Connection) Connect(ctx context.Context) {
	if c.provider == nil {
		return
	}
	c.setStatus(Connecting)

	if _, err := c.provider.RequestAccounts(ctx); err != nil {
		if errors.Is(err, core.ErrUserRejected) {
			c.logger.Info("wallet connection rejected by user")
		} else {
			c.logger.Errorf("wallet connect error: %s", err)
		}
		if ctx.Err() == nil {
			c.setStatus(NotConnected)
		}
		return
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Errorf("wallet refresh error: %s", err)
	}
}

// Refresh re-derives the status from what the provider reports now.
func (c *Connection) Refresh(ctx context.Context) error {
	if c.provider == nil {
		c.setStatus(Unavailable)
		return nil
	}

	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return err
	}
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		return err
	}

	next := State{Status: NotConnected, ChainID: chainID}
	if len(accounts) > 0 {
		next.Account = accounts[0]
		next.Status = Connected
		if c.target != nil && chainID.Cmp(c.target) != 0 {
			next.Status = OtherChain
		}
		balance, err := c.provider.BalanceAt(ctx, next.Account, nil)
		if err != nil {
			return err
		}
		next.Balance = balance
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.set(next)
	return nil
}

// Watch refreshes the status whenever the provider reports a change, until ctx is done.
func (c *Connection) Watch(ctx context.Context) {
	notifier, ok := c.provider.(ChangeNotifier)
	if !ok {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-notifier.Changed():
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Errorf("wallet refresh error: %s", err)
			}
		}
	}
}

// SwitchChain asks the wallet to move to target, or to the configured chain when target is nil.
func (c *Connection) SwitchChain(ctx context.Context, target *big.Int) error {
	if target == nil {
		target = c.target
	}
	if target == nil {
		return ErrNoTargetChain
	}
	if c.provider == nil {
		return core.ErrWalletNotConnected
	}
	if err := c.provider.SwitchChain(ctx, target); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// UpdateBalance refreshes the balance, after waiting for tx to be mined when it is given.
func (c *Connection) UpdateBalance(ctx context.Context, tx *types.Transaction) error {
	if c.provider == nil {
		return core.ErrWalletNotConnected
	}
	if tx != nil {
		if _, err := c.WaitMined(ctx, tx); err != nil {
			return err
		}
	}

	account := c.State().Account
	balance, err := c.provider.BalanceAt(ctx, account, nil)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.mu.Lock()
	c.state.Balance = balance
	c.mu.Unlock()
	c.notify()
	return nil
}

// WaitMined blocks until tx has its single confirmation or ctx is done. There is no timeout of its
// own.
func (c *Connection) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if c.provider == nil {
		return nil, core.ErrWalletNotConnected
	}
	return bind.WaitMined(ctx, c.provider, tx)
}

// Transactor returns signing options for the connected account. Only a Connected wallet can send.
func (c *Connection) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	s, err := c.connected()
	if err != nil {
		return nil, err
	}
	opts, err := c.provider.NewTransactor(ctx, s.Account, s.ChainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (c *Connection) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	s, err := c.connected()
	if err != nil {
		return nil, err
	}
	return c.provider.SignTypedData(ctx, s.Account, td)
}

func (c *Connection) connected() (State, error) {
	s := c.State()
	switch s.Status {
	case Connected:
		return s, nil
	case OtherChain:
		return s, core.ErrOtherChain
	}
	return s, core.ErrWalletNotConnected
}

func (c *Connection) setStatus(status Status) {
	c.mu.Lock()
	c.state.Status = status
	c.mu.Unlock()
	c.notify()
}

func (c *Connection) set(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify()
}

func (c *Connection) notify() {
	s := c.State()
	c.mu.RLock()
	listeners := append([]func(State){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}
