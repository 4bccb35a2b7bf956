package main

import (
	"context"
	"time"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/ballot"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/proposal"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var idFlag = &cli.StringFlag{Name: "id", Usage: "Proposal id", Required: true}

var proposalCMD = &cli.Command{
	Name:  "proposal",
	Usage: "Proposal commands",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List proposals",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "where", Usage: "Backend filter"},
				&cli.StringFlag{Name: "sort", Value: "createdAt:desc", Usage: "Sort order"},
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "Page size"},
			},
			Action: run(listProposals),
		},
		{
			Name:   "show",
			Usage:  "Show a proposal with its phase and actions",
			Flags:  []cli.Flag{idFlag},
			Action: run(showProposal),
		},
		{
			Name:   "join",
			Usage:  "Join a proposal",
			Flags:  []cli.Flag{idFlag},
			Action: run(joinProposal),
		},
		{
			Name:  "create",
			Usage: "Create a proposal from a draft",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "draft", Usage: "Draft id", Required: true},
			},
			Action: run(createProposal),
		},
		{
			Name:   "verify",
			Usage:  "Compare the proposal with its on-chain registration",
			Flags:  []cli.Flag{idFlag},
			Action: run(verifyProposal),
		},
		{
			Name:  "tally",
			Usage: "Read the assessment and ballot counters from the chain",
			Flags: []cli.Flag{idFlag},
			Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
				p, err := c.loadProposal(ctx, cctx)
				if err != nil {
					return err
				}
				if p.ProposalID == "" {
					return proposal.ErrNotRegistered
				}
				tally, err := ballot.ChainTally(ctx, c.vote, p.ProposalID)
				if err != nil {
					return err
				}
				printTally(tally)
				return nil
			}),
		},
		{
			Name:  "comment",
			Usage: "Comment on a proposal, or reply with --parent",
			Flags: []cli.Flag{
				idFlag,
				&cli.StringFlag{Name: "content", Required: true},
				&cli.StringFlag{Name: "parent", Usage: "Post to reply to"},
			},
			Action: run(commentProposal),
		},
		{
			Name:  "notice",
			Usage: "Post a notice on your proposal",
			Flags: []cli.Flag{
				idFlag,
				&cli.StringFlag{Name: "content", Required: true},
			},
			Action: run(noticeProposal),
		},
		{
			Name:  "report",
			Usage: "Report a post",
			Flags: []cli.Flag{
				idFlag,
				&cli.StringFlag{Name: "post", Required: true},
			},
			Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
				if _, err := c.loadProposal(ctx, cctx); err != nil {
					return err
				}
				if err := c.proposals.ReportPost(ctx, cctx.String("post")); err != nil {
					return err
				}
				notice("post reported")
				return nil
			}),
		},
		{
			Name:  "bookmark",
			Usage: "Toggle the bookmark of a proposal",
			Flags: []cli.Flag{idFlag},
			Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
				if _, err := c.loadProposal(ctx, cctx); err != nil {
					return err
				}
				on, err := c.proposals.Bookmark()
				if err != nil {
					return err
				}
				notice("bookmarked: %t", on)
				return nil
			}),
		},
	},
}

var draftCMD = &cli.Command{
	Name:  "draft",
	Usage: "Local proposal drafts",
	Subcommands: []*cli.Command{
		{
			Name:  "save",
			Usage: "Create or update a draft, times are RFC3339",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "id", Usage: "Draft to update, empty creates one"},
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "type", Value: "BUSINESS", Usage: "BUSINESS or SYSTEM"},
				&cli.StringFlag{Name: "description"},
				&cli.StringFlag{Name: "funding", Usage: "Funding amount in the smallest unit"},
				&cli.StringFlag{Name: "assess-begin"},
				&cli.StringFlag{Name: "assess-end"},
				&cli.StringFlag{Name: "vote-begin"},
				&cli.StringFlag{Name: "vote-end"},
			},
			Action: run(saveDraft),
		},
		{
			Name:  "list",
			Usage: "List drafts",
			Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
				drafts, err := c.proposals.Drafts()
				if err != nil {
					return err
				}
				printDrafts(drafts)
				return nil
			}),
		},
		{
			Name:  "delete",
			Usage: "Delete a draft",
			Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
			Action: run(func(ctx context.Context, c *client, cctx *cli.Context) error {
				return c.proposals.DeleteDraft(cctx.String("id"))
			}),
		},
	},
}

func listProposals(ctx context.Context, c *client, cctx *cli.Context) error {
	list, err := c.proposals.FetchList(ctx, backend.ListVariables{
		Where: cctx.String("where"),
		Sort:  cctx.String("sort"),
		Limit: cctx.Int("limit"),
	})
	if err != nil {
		return err
	}
	printProposalList(list)
	return nil
}

func showProposal(ctx context.Context, c *client, cctx *cli.Context) error {
	p, err := c.loadProposal(ctx, cctx)
	if err != nil {
		return err
	}
	bookmarked, err := c.proposals.Bookmarked(p.ID)
	if err != nil {
		return err
	}
	printProposal(p, c.proposals.Joined(), bookmarked, c.project(ctx, p))
	return nil
}

func joinProposal(ctx context.Context, c *client, cctx *cli.Context) error {
	if _, err := c.loadProposal(ctx, cctx); err != nil {
		return err
	}
	if !join(ctx, c.proposals) {
		return nil
	}
	notice("joined")
	return nil
}

func verifyProposal(ctx context.Context, c *client, cctx *cli.Context) error {
	if _, err := c.loadProposal(ctx, cctx); err != nil {
		return err
	}
	out, err := c.proposals.VerifyOnChain(ctx, c.budget)
	if err != nil {
		return err
	}
	printOnChain(out)
	if !out.DocHashMatches {
		return cli.Exit("document hash does not match the on-chain registration", 1)
	}
	return nil
}

func createProposal(ctx context.Context, c *client, cctx *cli.Context) error {
	draft, err := c.proposals.Draft(cctx.String("draft"))
	if err != nil {
		return err
	}
	p, err := c.proposals.CreateProposal(ctx, draft.Input, nil)
	if err != nil {
		return err
	}
	if err := c.proposals.DeleteDraft(draft.ID); err != nil {
		c.logger.Warnf("delete draft %s: %s", draft.ID, err)
	}
	notice("created proposal %s, pay the fee with: votera fee pay --id %s", p.ID, p.ID)
	return nil
}

func commentProposal(ctx context.Context, c *client, cctx *cli.Context) error {
	if _, err := c.loadProposal(ctx, cctx); err != nil {
		return err
	}
	if !join(ctx, c.proposals) {
		return nil
	}
	var post *core.Post
	var err error
	if parent := cctx.String("parent"); parent != "" {
		post, err = c.proposals.CreatePostComment(ctx, parent, cctx.String("content"))
	} else {
		post, err = c.proposals.CreateActivityComment(ctx, cctx.String("content"))
	}
	if err != nil {
		return err
	}
	printPosts([]*core.Post{post})
	return nil
}

func noticeProposal(ctx context.Context, c *client, cctx *cli.Context) error {
	if _, err := c.loadProposal(ctx, cctx); err != nil {
		return err
	}
	if !join(ctx, c.proposals) {
		return nil
	}
	post, err := c.proposals.CreateProposalNotice(ctx, cctx.String("content"))
	if err != nil {
		return err
	}
	printPosts([]*core.Post{post})
	return nil
}

func saveDraft(ctx context.Context, c *client, cctx *cli.Context) error {
	typ, err := core.ParseProposalType(cctx.String("type"))
	if err != nil {
		return err
	}
	in := core.ProposalInput{
		Name:          cctx.String("name"),
		Type:          typ,
		Description:   cctx.String("description"),
		FundingAmount: cctx.String("funding"),
	}
	if in.AssessPeriod, err = periodFlags(cctx, "assess-begin", "assess-end"); err != nil {
		return err
	}
	if in.VotePeriod, err = periodFlags(cctx, "vote-begin", "vote-end"); err != nil {
		return err
	}
	draft, err := c.proposals.SaveDraft(cctx.String("id"), in)
	if err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		notice("draft %s saved, not ready to submit: %s", draft.ID, err)
		return nil
	}
	notice("draft %s saved", draft.ID)
	return nil
}

func periodFlags(cctx *cli.Context, beginFlag, endFlag string) (*core.Period, error) {
	if !cctx.IsSet(beginFlag) && !cctx.IsSet(endFlag) {
		return nil, nil
	}
	begin, err := time.Parse(time.RFC3339, cctx.String(beginFlag))
	if err != nil {
		return nil, errors.Wrap(err, beginFlag)
	}
	end, err := time.Parse(time.RFC3339, cctx.String(endFlag))
	if err != nil {
		return nil, errors.Wrap(err, endFlag)
	}
	return &core.Period{Begin: begin, End: end}, nil
}
