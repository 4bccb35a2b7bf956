package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const maxSubscribeAttempts = 10

var watchCMD = &cli.Command{
	Name:   "watch",
	Usage:  "Follow a proposal through its phases until interrupted",
	Flags:  []cli.Flag{idFlag},
	Action: run(watch),
}

func watch(ctx context.Context, c *client, cctx *cli.Context) error {
	p, err := c.loadProposal(ctx, cctx)
	if err != nil {
		return err
	}

	c.wallet.OnChange(func(s wallet.State) {
		notice("wallet: %s", s.Status)
	})
	go c.wallet.Watch(ctx)

	c.fee.OnPaid(func(id string) {
		report(true, core.FeePaidNotice, common.Hash{})
	})

	last := c.project(ctx, p)
	printProposal(p, c.proposals.Joined(), false, last)

	onChange := func(p *core.Proposal) {
		if p.Status == core.StatusCreated {
			if _, err := c.fee.Refresh(ctx, p.ID); err != nil && ctx.Err() == nil {
				c.logger.Warnf("refresh fee: %s", err)
			}
		}
		proj := c.project(ctx, p)
		if proj.Phase == last.Phase && proj.PrimaryAction == last.PrimaryAction {
			return
		}
		last = proj
		notice("%s: phase %s, action %s", p.ID, proj.Phase, proj.PrimaryAction)
	}

	w := core.NewWatcher(c.logger.WithField("module", "watcher"), c.repo.Config.Watch.Interval, c.proposals.Refresh, onChange)
	w.Start(ctx, p)
	defer w.Stop()

	go subscribe(ctx, c, w)

	notice("watching %s, press Ctrl+C to stop", p.ID)
	<-ctx.Done()
	return nil
}

// subscribe feeds backend pushes into the watcher. When it gives up the watcher keeps polling
// period boundaries on its own.
func subscribe(ctx context.Context, c *client, w *core.Watcher) {
	resubscribe(ctx, c.logger.WithField("module", "subscription"), maxSubscribeAttempts, backoff.Fibonacci(time.Second),
		func(ctx context.Context, onConnected func()) error {
			return c.backend.SubscribeProposalChanged(ctx, w.Notify, onConnected)
		})
}

// resubscribe keeps a subscription alive with backoff. Only consecutive failed connections count
// towards attempts: the budget starts over once a connection was acknowledged.
func resubscribe(ctx context.Context, logger logrus.FieldLogger, attempts uint, algorithm backoff.Algorithm,
	run func(ctx context.Context, onConnected func()) error) {
	for {
		var connected atomic.Bool
		done := false
		err := retry.Retry(func(attempt uint) error {
			if ctx.Err() != nil {
				done = true
				return nil
			}
			err := run(ctx, func() { connected.Store(true) })
			switch {
			case errors.Is(err, backend.ErrSubscriptionDisabled):
				logger.Info("subscription disabled, polling only")
				done = true
				return nil
			case ctx.Err() != nil:
				done = true
				return nil
			case err == nil:
				err = errors.New("subscription completed by server")
			}
			if connected.Load() {
				logger.Warnf("subscription dropped: %s", err)
				return nil
			}
			logger.Warnf("subscription attempt %d: %s", attempt, err)
			return err
		}, strategy.Limit(attempts), strategy.Backoff(algorithm))
		if err != nil {
			logger.Warnf("subscription gave up, polling only: %s", err)
			return
		}
		if done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(algorithm(1)):
		}
	}
}
