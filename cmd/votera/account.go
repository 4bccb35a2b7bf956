package main

import (
	"context"
	"math/big"

	"github.com/bosagora/votera/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

var walletCMD = &cli.Command{
	Name:   "wallet",
	Usage:  "Show the wallet connection",
	Action: run(walletStatus),
	Subcommands: []*cli.Command{
		{
			Name:   "status",
			Usage:  "Show status, account, chain and balance",
			Action: run(walletStatus),
		},
		{
			Name:  "switch",
			Usage: "Switch the wallet to the configured chain or to --chain-id",
			Flags: []cli.Flag{
				&cli.Uint64Flag{Name: "chain-id", Usage: "Target chain id"},
			},
			Action: run(walletSwitch),
		},
	},
}

var enrollCMD = &cli.Command{
	Name:  "enroll",
	Usage: "Sign up the wallet account as a member",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Member name", Required: true},
	},
	Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
		printResult(c.session.Enroll(ctx, cctx.String("name")))
		return nil
	}),
}

var loginCMD = &cli.Command{
	Name:  "login",
	Usage: "Sign in with the wallet account",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "keep", Usage: "Keep the session for later commands"},
	},
	Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
		printResult(c.session.Login(ctx, cctx.Bool("keep")))
		return nil
	}),
}

var logoutCMD = &cli.Command{
	Name:  "logout",
	Usage: "Sign out",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "forget", Usage: "Also forget the membership of this wallet"},
	},
	Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
		if cctx.Bool("forget") {
			if err := c.session.ResetEnroll(); err != nil {
				return err
			}
			notice("membership forgotten")
			return nil
		}
		c.session.SignOut()
		notice("signed out")
		return nil
	}),
}

func walletStatus(ctx context.Context, c *client, cctx *cli.Context) error {
	printWallet(c.wallet.State())
	return nil
}

func walletSwitch(ctx context.Context, c *client, cctx *cli.Context) error {
	var target *big.Int
	if cctx.IsSet("chain-id") {
		target = new(big.Int).SetUint64(cctx.Uint64("chain-id"))
	}
	if err := c.wallet.SwitchChain(ctx, target); err != nil {
		return err
	}
	printWallet(c.wallet.State())
	return nil
}

func printResult(res session.Result) {
	report(res.Succeeded, res.MessageID, common.Hash{})
	if res.Succeeded && res.User != nil {
		notice("signed in as %s (%s)", res.User.Username, res.User.Address)
	}
}
