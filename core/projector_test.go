package core

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var projectNow = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProject(t *testing.T) {
	tests := []struct {
		name    string
		in      ProjectionInput
		phase   Phase
		primary Action
		enabled []Action
	}{
		{
			name:    "created pays fee",
			in:      ProjectionInput{Status: StatusCreated},
			phase:   PhasePayFee,
			primary: ActionPayFee,
			enabled: []Action{ActionPayFee},
		},
		{
			name:  "pending assess without evaluation",
			in:    ProjectionInput{Status: StatusPendingAssess},
			phase: PhaseAssess,
		},
		{
			name:    "assess needing evaluation",
			in:      ProjectionInput{Status: StatusAssess, AssessResult: &AssessResult{NeedEvaluation: true}},
			phase:   PhaseAssess,
			primary: ActionAssess,
			enabled: []Action{ActionAssess, ActionViewAssessResult},
		},
		{
			name:    "assessed shows result",
			in:      ProjectionInput{Status: StatusAssess, AssessResult: &AssessResult{}},
			phase:   PhaseAssess,
			primary: ActionViewAssessResult,
			enabled: []Action{ActionViewAssessResult},
		},
		{
			name:    "rejected shows result",
			in:      ProjectionInput{Status: StatusReject},
			phase:   PhaseAssess,
			primary: ActionViewAssessResult,
			enabled: []Action{ActionViewAssessResult},
		},
		{
			name:  "system proposal never assesses",
			in:    ProjectionInput{Status: StatusAssess, Type: SystemProposal, AssessResult: &AssessResult{NeedEvaluation: true}},
			phase: PhasePending,
		},
		{
			name:  "vote without status",
			in:    ProjectionInput{Status: StatusPendingVote},
			phase: PhaseVotePending,
		},
		{
			name:    "vote running for validator",
			in:      ProjectionInput{Status: StatusVote, VoteStatus: &VoteStatus{VoteProposalState: VoteRunning, IsValidVoter: true, NeedVote: true}},
			phase:   PhaseVoteActive,
			primary: ActionVote,
			enabled: []Action{ActionVote},
		},
		{
			name:  "vote running already voted",
			in:    ProjectionInput{Status: StatusVote, VoteStatus: &VoteStatus{VoteProposalState: VoteRunning, IsValidVoter: true}},
			phase: PhaseVoteActive,
		},
		{
			name:    "vote tallied",
			in:      ProjectionInput{Status: StatusVote, VoteStatus: &VoteStatus{VoteProposalState: VoteRejected}},
			phase:   PhaseVoteResult,
			primary: ActionViewVoteResult,
			enabled: []Action{ActionViewVoteResult},
		},
		{
			name: "closed approved before withdraw time",
			in: ProjectionInput{Status: StatusClosed, Now: projectNow, VoteStatus: &VoteStatus{
				VoteProposalState: VoteApproved, IsProposer: true, CanWithdrawAt: projectNow.Unix() + 60,
			}},
			phase:   PhaseResult,
			primary: ActionViewVoteResult,
			enabled: []Action{ActionViewVoteResult},
		},
		{
			name: "closed approved after withdraw time",
			in: ProjectionInput{Status: StatusClosed, Now: projectNow, VoteStatus: &VoteStatus{
				VoteProposalState: VoteApproved, IsProposer: true, CanWithdrawAt: projectNow.Unix() - 1,
			}},
			phase:   PhaseResult,
			primary: ActionWithdraw,
			enabled: []Action{ActionViewVoteResult, ActionWithdraw},
		},
		{
			name: "closed approved for another member",
			in: ProjectionInput{Status: StatusClosed, Now: projectNow, VoteStatus: &VoteStatus{
				VoteProposalState: VoteApproved, CanWithdrawAt: projectNow.Unix() - 1,
			}},
			phase:   PhaseResult,
			primary: ActionViewVoteResult,
			enabled: []Action{ActionViewVoteResult},
		},
		{
			name:    "cancelled",
			in:      ProjectionInput{Status: StatusCancel},
			phase:   PhaseResult,
			primary: ActionViewVoteResult,
			enabled: []Action{ActionViewVoteResult},
		},
		{
			name:  "unknown status",
			in:    ProjectionInput{Status: ProposalStatus(42)},
			phase: PhasePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.in)
			assert.Equal(t, tt.phase, got.Phase)
			assert.Equal(t, tt.primary, got.PrimaryAction)
			assert.Equal(t, tt.enabled, got.EnabledActions)
		})
	}
}

func TestProjectBoundaries(t *testing.T) {
	assess := &Period{Begin: projectNow.Add(-time.Hour), End: projectNow.Add(time.Hour)}
	vote := &Period{Begin: projectNow.Add(2 * time.Hour), End: projectNow.Add(3 * time.Hour)}

	got := Project(ProjectionInput{Status: StatusAssess, Now: projectNow, AssessPeriod: assess, VotePeriod: vote})
	assert.Equal(t, []time.Time{assess.End, vote.Begin, vote.End}, got.Boundaries)

	got = Project(ProjectionInput{Status: StatusVote, Type: SystemProposal, Now: projectNow, AssessPeriod: assess, VotePeriod: vote})
	assert.Equal(t, []time.Time{vote.Begin, vote.End}, got.Boundaries)
}

func TestProjectTotal(t *testing.T) {
	voteStates := []VoteState{VoteNone, VoteRunning, VoteApproved, VoteWithdrawn, VoteRejected, VoteInvalidQuorum, VoteAssessmentFailed}
	phases := map[Phase]bool{
		PhasePending: true, PhasePayFee: true, PhaseAssess: true,
		PhaseVotePending: true, PhaseVoteActive: true, PhaseVoteResult: true, PhaseResult: true,
	}

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("every input projects to a known phase", prop.ForAll(
		func(status uint8, system bool, withAssess, need bool, withVote bool, state int, voter, proposer bool, offset int64) bool {
			in := ProjectionInput{Status: ProposalStatus(status), Now: projectNow}
			if system {
				in.Type = SystemProposal
			}
			if withAssess {
				in.AssessResult = &AssessResult{NeedEvaluation: need}
			}
			if withVote {
				in.VoteStatus = &VoteStatus{
					VoteProposalState: voteStates[state],
					IsValidVoter:      voter,
					NeedVote:          voter,
					IsProposer:        proposer,
					CanWithdrawAt:     projectNow.Unix() + offset,
				}
			}
			out := Project(in)
			if !phases[out.Phase] {
				return false
			}
			if out.PrimaryAction != ActionNone && !out.Enabled(out.PrimaryAction) {
				return false
			}
			// withdraw is only ever offered to the proposer once the time has come
			if out.Enabled(ActionWithdraw) && (in.VoteStatus == nil || !in.VoteStatus.IsProposer || offset > 0) {
				return false
			}
			return true
		},
		gen.UInt8(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(0, len(voteStates)-1),
		gen.Bool(),
		gen.Bool(),
		gen.Int64Range(-3600, 3600),
	))
	properties.TestingRun(t)
}
