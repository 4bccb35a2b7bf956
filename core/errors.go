package core

import "github.com/pkg/errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserRejected is returned by a wallet when the user declines a signature or transaction
	ErrUserRejected = errors.New("user rejected the request")

	ErrNotJoined          = errors.New("not joined to the proposal")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrProposalNotLoaded  = errors.New("proposal not loaded")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrOtherChain         = errors.New("wallet connected to another chain")
)

// MessageID identifies a short user-facing message. The set is closed.
type MessageID string

const (
	MessageNone MessageID = ""

	DeviceUnconnected  MessageID = "device-unconnected"
	DeviceUnregistered MessageID = "device-unregistered"
	AuthCancelInput    MessageID = "auth-cancel-input"
	AuthMissingInput   MessageID = "auth-missing-input"
	AuthInvalid        MessageID = "auth-invalid"
	AuthBlocked        MessageID = "auth-blocked"
	AuthUnauthorized   MessageID = "auth-unauthorized"
	AuthForbidden      MessageID = "auth-forbidden"
	SystemConnect      MessageID = "system-connect"
	SystemTimedout     MessageID = "system-timedout"
	SystemOther        MessageID = "system-other"
	SystemReady        MessageID = "system-ready"

	WalletNotConnected   MessageID = "wallet-not-connected"
	WalletOtherChain     MessageID = "wallet-other-chain"
	WalletExecutionError MessageID = "wallet-execution-error"
	NotJoined            MessageID = "proposal-not-joined"
	InvalidInput         MessageID = "invalid-input"
	Busy                 MessageID = "busy"

	FeePaidNotice          MessageID = "fee-paid"
	FeeMiningNotice        MessageID = "fee-mining"
	FeeExpiredQuote        MessageID = "fee-expired"
	FeeInvalidQuote        MessageID = "fee-invalid"
	FeeAlreadyExist        MessageID = "fee-already-exist-proposal"
	FeeInvalidFee          MessageID = "fee-invalid-fee"
	FeeNotEnoughBudget     MessageID = "fee-not-enough-budget"
	FeeNotAuthorized       MessageID = "fee-not-authorized"
	FeeInvalidInput        MessageID = "fee-invalid-input"
	FeeNotReady            MessageID = "fee-not-ready"
	FeeContractError       MessageID = "fee-contract-error"
	FeeContractStateError  MessageID = "fee-contract-state-error"
	AssessIncomplete       MessageID = "assess-incomplete"
	AssessNotAllowed       MessageID = "assess-not-allowed"
	AssessSubmitted        MessageID = "assess-submitted"
	VoteGenericError       MessageID = "vote-error"
	VoteNotValidator       MessageID = "vote-not-validator"
	VoteNotRunning         MessageID = "vote-not-running"
	VoteRecordFailed       MessageID = "vote-record-failed"
	VoteSubmitted          MessageID = "vote-submitted"
	WithdrawNotApproved    MessageID = "withdraw-not-approved"
	WithdrawCountdown      MessageID = "withdraw-countdown"
	WithdrawNotProposer    MessageID = "withdraw-not-proposer"
	WithdrawDone           MessageID = "withdraw-done"
	WithdrawNotFound       MessageID = "withdraw-not-found-proposal"
	WithdrawNotFunding     MessageID = "withdraw-not-fund-proposal"
	WithdrawNotAuthorized  MessageID = "withdraw-not-authorized"
	WithdrawNotReady       MessageID = "withdraw-not-ready"
	WithdrawAlready        MessageID = "withdraw-already-withdrawn"
	WithdrawNotEnoughFunds MessageID = "withdraw-not-enough-budget"
	WithdrawContractError  MessageID = "withdraw-contract-error"
	WithdrawStateError     MessageID = "withdraw-contract-state-error"
)

// AuthMessageIDs is the closed set of results an authentication attempt may report.
var AuthMessageIDs = []MessageID{
	DeviceUnconnected, DeviceUnregistered, AuthCancelInput, AuthMissingInput, AuthInvalid,
	AuthBlocked, AuthUnauthorized, AuthForbidden, SystemConnect, SystemTimedout, SystemOther, SystemReady,
}

var messages = map[MessageID]string{
	DeviceUnconnected:      "Connect your wallet first.",
	DeviceUnregistered:     "This wallet is not registered on this device.",
	AuthCancelInput:        "The request was cancelled in the wallet.",
	AuthMissingInput:       "Required input is missing.",
	AuthInvalid:            "The sign-in information is invalid.",
	AuthBlocked:            "This account is blocked.",
	AuthUnauthorized:       "You are not authorized.",
	AuthForbidden:          "Access is forbidden.",
	SystemConnect:          "Could not connect to the server.",
	SystemTimedout:         "The server did not respond in time.",
	SystemOther:            "An unexpected error occurred. Please try again.",
	SystemReady:            "The service is not ready yet.",
	WalletNotConnected:     "Connect your wallet to continue.",
	WalletOtherChain:       "Switch your wallet to the configured chain.",
	WalletExecutionError:   "The wallet could not execute the transaction.",
	NotJoined:              "Join the proposal first.",
	InvalidInput:           "The input is invalid.",
	Busy:                   "The previous request is still running.",
	FeePaidNotice:          "The proposal fee has been paid.",
	FeeMiningNotice:        "The fee transaction is being mined.",
	FeeExpiredQuote:        "The fee quote has expired.",
	FeeInvalidQuote:        "The fee quote is no longer valid.",
	FeeAlreadyExist:        "The proposal is already registered on-chain.",
	FeeInvalidFee:          "The fee amount is not correct.",
	FeeNotEnoughBudget:     "The commons budget cannot cover this funding amount.",
	FeeNotAuthorized:       "The fee quote was not signed by an authorized signer.",
	FeeInvalidInput:        "The proposal data was rejected by the contract.",
	FeeNotReady:            "The contract is not ready to accept proposals.",
	FeeContractError:       "The contract rejected the transaction.",
	FeeContractStateError:  "The contract is in an unexpected state.",
	AssessIncomplete:       "Every assessment item needs a score between 1 and 10.",
	AssessNotAllowed:       "Assessment is not open for you on this proposal.",
	AssessSubmitted:        "Your assessment has been submitted.",
	VoteGenericError:       "The ballot could not be submitted.",
	VoteNotValidator:       "You are not a validator for this proposal.",
	VoteNotRunning:         "The vote is not running.",
	VoteRecordFailed:       "The ballot was sent but could not be recorded.",
	VoteSubmitted:          "Your ballot has been submitted.",
	WithdrawNotApproved:    "Only approved proposals can be withdrawn.",
	WithdrawCountdown:      "Withdrawal is not available yet.",
	WithdrawNotProposer:    "Only the proposer can withdraw funds.",
	WithdrawDone:           "The funds have been withdrawn.",
	WithdrawNotFound:       "The proposal was not found on-chain.",
	WithdrawNotFunding:     "The proposal is not a funding proposal.",
	WithdrawNotAuthorized:  "This account may not withdraw the funds.",
	WithdrawNotReady:       "The withdrawal period has not started.",
	WithdrawAlready:        "The funds have already been withdrawn.",
	WithdrawNotEnoughFunds: "The commons budget does not hold enough funds.",
	WithdrawContractError:  "The contract rejected the withdrawal.",
	WithdrawStateError:     "The contract is in an unexpected state.",
}

func (m MessageID) Text() string {
	if text, ok := messages[m]; ok {
		return text
	}
	return string(m)
}
