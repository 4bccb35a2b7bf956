package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "Votera"
	app.Usage = "Votera proposal and voting client"
	app.Compiled = time.Now()

	cli.VersionPrinter = func(c *cli.Context) {
		printVersion()
	}

	// global flags
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "repo",
			Usage: "Votera storage repo path",
		},
		&cli.BoolFlag{
			Name:  "guest",
			Usage: "Browse without an identity, nothing is persisted",
		},
	}

	app.Commands = []*cli.Command{
		configCMD,
		walletCMD,
		enrollCMD,
		loginCMD,
		logoutCMD,
		proposalCMD,
		draftCMD,
		feeCMD,
		assessCMD,
		voteCMD,
		withdrawCMD,
		validatorsCMD,
		watchCMD,
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "Votera version",
			Action: func(ctx *cli.Context) error {
				printVersion()
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
