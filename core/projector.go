package core

import (
	"sort"
	"time"
)

type Phase string

const (
	// PhasePending is the neutral projection for statuses this client does not understand
	PhasePending     Phase = "pending"
	PhasePayFee      Phase = "pay-fee"
	PhaseAssess      Phase = "assess"
	PhaseVotePending Phase = "vote-pending"
	PhaseVoteActive  Phase = "vote-active"
	PhaseVoteResult  Phase = "vote-result"
	PhaseResult      Phase = "result"
)

type Action string

const (
	ActionNone             Action = ""
	ActionPayFee           Action = "pay-fee"
	ActionAssess           Action = "assess"
	ActionViewAssessResult Action = "view-assess-result"
	ActionVote             Action = "vote"
	ActionViewVoteResult   Action = "view-vote-result"
	ActionWithdraw         Action = "withdraw"
)

type ProjectionInput struct {
	Status       ProposalStatus
	Type         ProposalType
	Now          time.Time
	AssessPeriod *Period
	VotePeriod   *Period
	AssessResult *AssessResult
	VoteStatus   *VoteStatus
}

type Projection struct {
	Phase          Phase
	PrimaryAction  Action
	EnabledActions []Action
	// Boundaries are the period edges that should trigger a refetch once crossed
	Boundaries []time.Time
}

func (p Projection) Enabled(action Action) bool {
	for _, a := range p.EnabledActions {
		if a == action {
			return true
		}
	}
	return false
}

// ProjectionFor builds the projector input for a loaded proposal.
func ProjectionFor(p *Proposal, now time.Time, assess *AssessResult, vote *VoteStatus) ProjectionInput {
	if p == nil {
		return ProjectionInput{Status: StatusUnknown, Now: now}
	}
	return ProjectionInput{
		Status:       p.Status,
		Type:         p.Type,
		Now:          now,
		AssessPeriod: p.AssessPeriod,
		VotePeriod:   p.VotePeriod,
		AssessResult: assess,
		VoteStatus:   vote,
	}
}

// Project maps a proposal state onto the phase shown to the user and the actions that are legal in it.
// Times only produce refetch boundaries, the phase itself follows the persisted status.
func Project(in ProjectionInput) Projection {
	out := Projection{
		Phase:      PhasePending,
		Boundaries: boundaries(in),
	}

	switch in.Status {
	case StatusCreated:
		out.Phase = PhasePayFee
		out.PrimaryAction = ActionPayFee
		out.EnabledActions = []Action{ActionPayFee}

	case StatusPendingAssess, StatusAssess, StatusReject:
		if in.Type != BusinessProposal {
			return out
		}
		out.Phase = PhaseAssess
		if in.AssessResult != nil && in.AssessResult.NeedEvaluation {
			out.EnabledActions = append(out.EnabledActions, ActionAssess)
		}
		if in.Status != StatusPendingAssess {
			out.EnabledActions = append(out.EnabledActions, ActionViewAssessResult)
		}
		if len(out.EnabledActions) > 0 {
			out.PrimaryAction = out.EnabledActions[0]
		}

	case StatusPendingVote, StatusVote:
		vs := in.VoteStatus
		switch {
		case vs == nil || vs.VoteProposalState == VoteNone:
			out.Phase = PhaseVotePending
		case vs.VoteProposalState == VoteRunning:
			out.Phase = PhaseVoteActive
			if vs.IsValidVoter && vs.NeedVote {
				out.PrimaryAction = ActionVote
				out.EnabledActions = []Action{ActionVote}
			}
		default:
			out.Phase = PhaseVoteResult
			resultActions(&out, in)
		}

	case StatusClosed, StatusCancel:
		out.Phase = PhaseResult
		resultActions(&out, in)
	}

	return out
}

func resultActions(out *Projection, in ProjectionInput) {
	out.PrimaryAction = ActionViewVoteResult
	out.EnabledActions = []Action{ActionViewVoteResult}
	vs := in.VoteStatus
	if vs == nil || vs.VoteProposalState != VoteApproved || !vs.IsProposer {
		return
	}
	if in.Now.Unix() >= vs.CanWithdrawAt {
		out.PrimaryAction = ActionWithdraw
		out.EnabledActions = append(out.EnabledActions, ActionWithdraw)
	}
}

// boundaries returns the period edges still ahead of now, sorted.
func boundaries(in ProjectionInput) []time.Time {
	var out []time.Time
	add := func(p *Period) {
		if p == nil {
			return
		}
		for _, t := range []time.Time{p.Begin, p.End} {
			if !t.IsZero() && t.After(in.Now) {
				out = append(out, t)
			}
		}
	}
	if in.Type == BusinessProposal {
		add(in.AssessPeriod)
	}
	add(in.VotePeriod)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
