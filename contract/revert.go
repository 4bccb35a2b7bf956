package contract

import (
	"strings"

	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// userRejectedCode is the EIP-1193 provider code for a request the user declined.
const userRejectedCode = 4001

// RevertCode is the typed form of a contract revert reason.
type RevertCode uint8

const (
	// RevertNone means the error did not come from a contract revert
	RevertNone RevertCode = iota
	// RevertUnknown is a revert whose reason is not in the table
	RevertUnknown

	RevertAlreadyExistProposal
	RevertInvalidFee
	RevertNotEnoughBudget
	RevertNotAuthorized
	RevertInvalidInput
	RevertNotReady
	// RevertE000 and RevertE001 are the contracts' generic failure codes
	RevertE000
	RevertE001

	RevertNotFoundProposal
	RevertNotFundProposal
	RevertNotApprovedProposal
	RevertAlreadyWithdrawn
)

var revertReasons = []struct {
	reason string
	code   RevertCode
}{
	{"AlreadyExistProposal", RevertAlreadyExistProposal},
	{"InvalidFee", RevertInvalidFee},
	{"NotEnoughBudget", RevertNotEnoughBudget},
	{"NotAuthorized", RevertNotAuthorized},
	{"InvalidInput", RevertInvalidInput},
	{"NotReady", RevertNotReady},
	{"NotFoundProposal", RevertNotFoundProposal},
	{"NotFundProposal", RevertNotFundProposal},
	{"NotApprovedProposal", RevertNotApprovedProposal},
	{"AlreadyWithdrawn", RevertAlreadyWithdrawn},
	{"E000", RevertE000},
	{"E001", RevertE001},
}

func (c RevertCode) String() string {
	switch c {
	case RevertNone:
		return "none"
	case RevertUnknown:
		return "unknown"
	}
	for _, r := range revertReasons {
		if r.code == c {
			return r.reason
		}
	}
	return "unknown"
}

// ReasonOf extracts the revert reason from a transaction or call error.
func ReasonOf(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if data, ok := de.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(data)); uerr == nil {
				return reason, true
			}
		}
	}

	msg := err.Error()
	const marker = "execution reverted"
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(msg[i+len(marker):], ":"))
	return rest, true
}

// Classify maps err onto a RevertCode. Exact reasons win over substring matches.
func Classify(err error) RevertCode {
	reason, ok := ReasonOf(err)
	if !ok {
		return RevertNone
	}
	for _, r := range revertReasons {
		if r.reason == reason {
			return r.code
		}
	}
	for _, r := range revertReasons {
		if strings.Contains(reason, r.reason) {
			return r.code
		}
	}
	return RevertUnknown
}

// IsUserRejected reports whether the wallet user declined the request.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrUserRejected) {
		return true
	}
	var re rpc.Error
	if errors.As(err, &re) && re.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user denied") || strings.Contains(msg, "user rejected")
}
