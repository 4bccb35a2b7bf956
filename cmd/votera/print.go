package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bosagora/votera"
	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/ballot"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/proposal"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

func printVersion() {
	fmt.Printf("Votera version: %s-%s-%s\n", votera.CurrentVersion, votera.CurrentBranch, votera.CurrentCommit)
	fmt.Printf("App build date: %s\n", votera.BuildDate)
	fmt.Printf("System version: %s\n", votera.Platform)
	fmt.Printf("Golang version: %s\n", votera.GoVersion)
	fmt.Println()
}

func notice(format string, args ...any) {
	_, _ = infoColor.Printf(format+"\n", args...)
}

// report prints the message of an outcome in green or red. A non-zero hash is shown with it.
func report(succeeded bool, id core.MessageID, hash common.Hash) {
	if id == core.MessageNone {
		return
	}
	c := failColor
	if succeeded {
		c = okColor
	}
	line := fmt.Sprintf("[%s] %s", id, id.Text())
	if hash != (common.Hash{}) {
		line += " tx=" + hash.Hex()
	}
	_, _ = c.Println(line)
}

func newTable(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

func formatPeriod(p *core.Period) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s ~ %s", p.Begin.Local().Format(time.DateTime), p.End.Local().Format(time.DateTime))
}

func printWallet(s wallet.State) {
	t := newTable("STATUS", "ACCOUNT", "CHAIN", "BALANCE")
	row := table.Row{s.Status, "-", "-", "-"}
	if s.Account != (common.Address{}) {
		row[1] = s.Account.Hex()
	}
	if s.ChainID != nil {
		row[2] = s.ChainID.String()
	}
	if s.Balance != nil {
		row[3] = s.Balance.String()
	}
	t.AppendRow(row)
	t.Render()
}

func printProposal(p *core.Proposal, joined, bookmarked bool, proj core.Projection) {
	t := newTable("FIELD", "VALUE")
	t.AppendRows([]table.Row{
		{"id", p.ID},
		{"on-chain id", lo.Ternary(p.ProposalID == "", "-", p.ProposalID)},
		{"name", p.Name},
		{"type", p.Type},
		{"status", p.Status},
		{"assess period", formatPeriod(p.AssessPeriod)},
		{"vote period", formatPeriod(p.VotePeriod)},
		{"funding", lo.Ternary(p.FundingAmount == "", "-", p.FundingAmount)},
		{"joined", joined},
		{"bookmarked", bookmarked},
	})
	t.AppendSeparator()
	t.AppendRow(table.Row{"phase", proj.Phase})
	t.AppendRow(table.Row{"primary action", lo.Ternary(proj.PrimaryAction == core.ActionNone, "-", string(proj.PrimaryAction))})
	actions := lo.Map(proj.EnabledActions, func(a core.Action, _ int) string { return string(a) })
	t.AppendRow(table.Row{"actions", lo.Ternary(len(actions) == 0, "-", strings.Join(actions, ", "))})
	t.Render()
}

func printProposalList(list *backend.ProposalList) {
	t := newTable("ID", "NAME", "TYPE", "STATUS", "VOTE PERIOD")
	for _, p := range list.Values {
		t.AppendRow(table.Row{p.ID, p.Name, p.Type, p.Status, formatPeriod(p.VotePeriod)})
	}
	t.AppendFooter(table.Row{"", "", "", "total", list.Count})
	t.Render()
}

func printPosts(posts []*core.Post) {
	t := newTable("ID", "WRITER", "CREATED", "CONTENT")
	for _, p := range posts {
		t.AppendRow(table.Row{p.ID, p.WriterID, p.CreatedAt.Local().Format(time.DateTime), p.Content})
	}
	t.Render()
}

func printDrafts(drafts []core.Draft) {
	t := newTable("ID", "NAME", "TYPE", "UPDATED")
	for _, d := range drafts {
		t.AppendRow(table.Row{d.ID, d.Input.Name, d.Input.Type, d.UpdatedAt.Local().Format(time.DateTime)})
	}
	t.Render()
}

func printAssessResult(res *core.AssessResult) {
	t := newTable("CRITERION", "AVERAGE")
	for i, name := range core.AssessCriteria {
		t.AppendRow(table.Row{name, fmt.Sprintf("%.2f", res.Averages[i])})
	}
	t.AppendFooter(table.Row{"participants", res.AssessParticipantSize})
	t.Render()
	notice("need evaluation: %t", res.NeedEvaluation)
}

func printVoteStatus(vs *core.VoteStatus) {
	t := newTable("CHOICE", "COUNT")
	for _, choice := range []core.Choice{core.ChoiceYes, core.ChoiceNo, core.ChoiceAbstain} {
		count := "0"
		if n := vs.VoteResult[choice]; n != nil {
			count = n.String()
		}
		t.AppendRow(table.Row{choice, count})
	}
	t.AppendFooter(table.Row{"validators", vs.ValidatorSize})
	t.Render()
	notice("valid voter: %t, need vote: %t", vs.IsValidVoter, vs.NeedVote)
}

func printValidators(validators []backend.Validator) {
	t := newTable("ADDRESS", "ASSESSED", "VOTED")
	for _, v := range validators {
		t.AppendRow(table.Row{v.Address, v.HasAssess, v.HasBallot})
	}
	t.Render()
}

func printOnChain(out *proposal.OnChain) {
	d := out.Data
	t := newTable("FIELD", "VALUE")
	t.AppendRows([]table.Row{
		{"title", d.Title},
		{"state", d.State},
		{"proposer", d.Proposer.Hex()},
		{"doc hash", common.Hash(d.DocHash).Hex()},
		{"fund amount", d.FundAmount},
		{"doc hash matches", lo.Ternary(out.DocHashMatches, okColor.Sprint("yes"), failColor.Sprint("no"))},
		{"proposer matches", lo.Ternary(out.ProposerMatches, okColor.Sprint("yes"), failColor.Sprint("no"))},
	})
	t.Render()
}

func printTally(tally *ballot.Tally) {
	t := newTable("COUNTER", "VALUE")
	t.AppendRow(table.Row{"assessments", tally.Assessments})
	t.AppendRow(table.Row{"ballots", tally.Ballots})
	for _, choice := range []core.Choice{core.ChoiceYes, core.ChoiceNo, core.ChoiceAbstain} {
		t.AppendRow(table.Row{choice, tally.Votes[choice]})
	}
	t.Render()
}
