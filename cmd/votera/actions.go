package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bosagora/votera/assess"
	"github.com/bosagora/votera/ballot"
	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var feeCMD = &cli.Command{
	Name:  "fee",
	Usage: "Proposal fee commands",
	Subcommands: []*cli.Command{
		{
			Name:   "pay",
			Usage:  "Pay the proposal fee and register the proposal on-chain",
			Flags:  []cli.Flag{idFlag},
			Action: run(payFee),
		},
		{
			Name:  "status",
			Usage: "Show the fee status, --wait polls until it settles",
			Flags: []cli.Flag{
				idFlag,
				&cli.BoolFlag{Name: "wait"},
				&cli.DurationFlag{Name: "interval", Value: 5 * time.Second},
			},
			Action: run(feeStatus),
		},
	},
}

var assessCMD = &cli.Command{
	Name:  "assess",
	Usage: "Business proposal assessment commands",
	Subcommands: []*cli.Command{
		{
			Name:  "submit",
			Usage: "Submit scores, e.g. --score completeness=8 for every criterion",
			Flags: []cli.Flag{
				idFlag,
				&cli.StringSliceFlag{Name: "score", Required: true, Usage: "criterion=value, value 1 to 10"},
			},
			Action: run(submitAssess),
		},
		{
			Name:  "result",
			Usage: "Show the assessment result",
			Flags: []cli.Flag{idFlag},
			Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
				p, err := c.loadProposal(ctx, cctx)
				if err != nil {
					return err
				}
				res, err := c.assess.Result(ctx, p.ID)
				if err != nil {
					return err
				}
				printAssessResult(res)
				return nil
			}),
		},
	},
}

var voteCMD = &cli.Command{
	Name:  "vote",
	Usage: "Cast a ballot, or show the vote status without --choice",
	Flags: []cli.Flag{
		idFlag,
		&cli.StringFlag{Name: "choice", Usage: "yes, no or abstain"},
	},
	Action: run(vote),
}

var withdrawCMD = &cli.Command{
	Name:   "withdraw",
	Usage:  "Withdraw the funds of an approved business proposal",
	Flags:  []cli.Flag{idFlag},
	Action: run(withdraw),
}

var validatorsCMD = &cli.Command{
	Name:  "validators",
	Usage: "List the validators of a proposal",
	Flags: []cli.Flag{
		idFlag,
		&cli.IntFlag{Name: "limit", Value: ballot.DefaultValidatorLimit},
	},
	Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
		validators, err := c.ballot.Validators(ctx, cctx.String("id"), cctx.Int("limit"))
		if err != nil {
			return err
		}
		printValidators(validators)
		return nil
	}),
}

func payFee(ctx context.Context, c *client, cctx *cli.Context) error {
	p, err := c.loadProposal(ctx, cctx)
	if err != nil {
		return err
	}
	if p.Status != core.StatusCreated {
		notice("proposal is %s, there is no fee to pay", p.Status)
		return nil
	}
	c.fee.OnPaid(func(id string) {
		report(true, core.FeePaidNotice, common.Hash{})
	})
	out := c.fee.Pay(ctx, p)
	if out.MessageID != core.FeePaidNotice {
		report(out.Succeeded, out.MessageID, out.TxHash)
	}
	return nil
}

func feeStatus(ctx context.Context, c *client, cctx *cli.Context) error {
	id := cctx.String("id")
	var status core.FeeStatus
	var err error
	if cctx.Bool("wait") {
		status, err = c.fee.Poll(ctx, id, cctx.Duration("interval"))
	} else {
		status, err = c.fee.Refresh(ctx, id)
	}
	if err != nil {
		return err
	}
	notice("fee status: %s", status)
	return nil
}

func submitAssess(ctx context.Context, c *client, cctx *cli.Context) error {
	var scores assess.Scores
	for _, kv := range cctx.StringSlice("score") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return errors.Errorf("score %q is not criterion=value", kv)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return errors.Wrapf(err, "score %q", kv)
		}
		if err := scores.SetByName(strings.TrimSpace(name), n); err != nil {
			return err
		}
	}
	if _, err := c.loadProposal(ctx, cctx); err != nil {
		return err
	}
	if !join(ctx, c.proposals) {
		return nil
	}
	out := c.assess.Submit(ctx, scores)
	report(out.Succeeded, out.MessageID, out.TxHash)
	return nil
}

func vote(ctx context.Context, c *client, cctx *cli.Context) error {
	p, err := c.loadProposal(ctx, cctx)
	if err != nil {
		return err
	}
	if !cctx.IsSet("choice") {
		vs, err := c.ballot.Status(ctx, p.ID)
		if err != nil {
			return err
		}
		printVoteStatus(vs)
		return nil
	}
	choice, err := core.ParseChoice(cctx.String("choice"))
	if err != nil {
		return err
	}
	if !join(ctx, c.proposals) {
		return nil
	}
	out := c.ballot.SubmitBallot(ctx, choice)
	report(out.Succeeded, out.MessageID, out.TxHash)
	return nil
}

func withdraw(ctx context.Context, c *client, cctx *cli.Context) error {
	if _, err := c.loadProposal(ctx, cctx); err != nil {
		return err
	}
	out := c.ballot.Withdraw(ctx)
	report(out.Succeeded, out.MessageID, out.TxHash)
	if out.MessageID == core.WithdrawCountdown {
		if vs := c.ballot.Cached(cctx.String("id")); vs != nil {
			gate := ballot.WithdrawGate(vs, time.Now())
			notice("available in %s", gate.Remaining.Round(time.Second))
		}
	}
	return nil
}
