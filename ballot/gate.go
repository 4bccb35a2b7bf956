package ballot

import (
	"time"

	"github.com/bosagora/votera/core"
)

// Gate is the withdraw affordance at one instant.
type Gate struct {
	Open      bool
	MessageID core.MessageID
	// Remaining is the countdown until the gate opens, zero once open
	Remaining time.Duration
}

// WithdrawGate decides whether funds can be withdrawn at now. Only approved votes open, and only
// once now has reached CanWithdrawAt.
func WithdrawGate(vs *core.VoteStatus, now time.Time) Gate {
	switch {
	case vs == nil:
		return Gate{MessageID: core.WithdrawNotApproved}
	case vs.VoteProposalState == core.VoteWithdrawn:
		return Gate{MessageID: core.WithdrawAlready}
	case vs.VoteProposalState != core.VoteApproved:
		return Gate{MessageID: core.WithdrawNotApproved}
	}
	at := time.Unix(vs.CanWithdrawAt, 0)
	if now.Before(at) {
		return Gate{MessageID: core.WithdrawCountdown, Remaining: at.Sub(now)}
	}
	return Gate{Open: true}
}
