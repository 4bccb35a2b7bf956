package core

import (
	"bytes"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

type ProposalStatus uint8

const (
	// StatusUnknown is any status string the backend sends that this client does not know
	StatusUnknown ProposalStatus = iota

	// StatusCreated means the proposal exists off-chain and its fee is not paid yet
	StatusCreated

	StatusPendingAssess
	StatusAssess

	// StatusReject is terminal for assessment, the proposal never reaches the vote
	StatusReject

	StatusPendingVote
	StatusVote
	StatusClosed
	StatusCancel
)

var proposalStatusNames = map[ProposalStatus]string{
	StatusCreated:       "CREATED",
	StatusPendingAssess: "PENDING_ASSESS",
	StatusAssess:        "ASSESS",
	StatusReject:        "REJECT",
	StatusPendingVote:   "PENDING_VOTE",
	StatusVote:          "VOTE",
	StatusClosed:        "CLOSED",
	StatusCancel:        "CANCEL",
}

// AllProposalStatuses lists every documented status, StatusUnknown excluded.
var AllProposalStatuses = []ProposalStatus{
	StatusCreated, StatusPendingAssess, StatusAssess, StatusReject,
	StatusPendingVote, StatusVote, StatusClosed, StatusCancel,
}

func ParseProposalStatus(s string) ProposalStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	for status, name := range proposalStatusNames {
		if name == s {
			return status
		}
	}
	return StatusUnknown
}

func (s ProposalStatus) String() string {
	if name, ok := proposalStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ProposalStatus) UnmarshalText(text []byte) error {
	*s = ParseProposalStatus(string(text))
	return nil
}

type ProposalType uint8

const (
	// BusinessProposal asks the commons budget for funding and goes through assessment
	BusinessProposal ProposalType = iota

	// SystemProposal changes governance parameters, it has no funding and no assessment
	SystemProposal
)

func ParseProposalType(s string) (ProposalType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUSINESS":
		return BusinessProposal, nil
	case "SYSTEM":
		return SystemProposal, nil
	}
	return BusinessProposal, errors.Errorf("unknown proposal type %q", s)
}

func (t ProposalType) String() string {
	if t == SystemProposal {
		return "SYSTEM"
	}
	return "BUSINESS"
}

func (t ProposalType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ProposalType) UnmarshalText(text []byte) error {
	v, err := ParseProposalType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Period is the half-open interval [Begin, End).
type Period struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

func (p *Period) Contains(t time.Time) bool {
	if p == nil {
		return false
	}
	return !t.Before(p.Begin) && t.Before(p.End)
}

type Proposal struct {
	// ID is the backend key
	ID string
	// ProposalID is the on-chain key, empty until the creation transaction is confirmed
	ProposalID      string
	Name            string
	Type            ProposalType
	Status          ProposalStatus
	AssessPeriod    *Period
	VotePeriod      *Period
	FundingAmount   string
	ProposerAddress string
	DocHash         string
	CreatorID       string
	ActivityID      string
	NoticeID        string
}

// FundingAmountWei parses FundingAmount, an integer string in the smallest unit.
func (p *Proposal) FundingAmountWei() (*big.Int, error) {
	if p.FundingAmount == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(p.FundingAmount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "funding amount %q", p.FundingAmount)
	}
	return amount, nil
}

// DocHashBytes decodes DocHash into the 32 bytes stored on-chain.
func (p *Proposal) DocHashBytes() ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(p.DocHash)
	if err != nil || len(raw) != len(out) {
		return out, errors.Wrapf(ErrInvalidInput, "doc hash %q", p.DocHash)
	}
	copy(out[:], raw)
	return out, nil
}

// VerifyDocHash bit-compares the off-chain document hash against the hash confirmed on-chain.
func (p *Proposal) VerifyDocHash(onChain [32]byte) bool {
	local, err := p.DocHashBytes()
	if err != nil {
		return false
	}
	return bytes.Equal(local[:], onChain[:])
}

// ProposalInput is what a proposer submits to create a proposal off-chain.
type ProposalInput struct {
	Name          string
	Type          ProposalType
	Description   string
	FundingAmount string
	Logo          string
	AssessPeriod  *Period
	VotePeriod    *Period
}

func (in *ProposalInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Wrap(ErrInvalidInput, "name is required")
	}
	if in.VotePeriod == nil || !in.VotePeriod.Begin.Before(in.VotePeriod.End) {
		return errors.Wrap(ErrInvalidInput, "vote period is required")
	}
	if in.Type == BusinessProposal {
		if in.AssessPeriod == nil || !in.AssessPeriod.Begin.Before(in.AssessPeriod.End) {
			return errors.Wrap(ErrInvalidInput, "assess period is required for business proposals")
		}
		if in.AssessPeriod.End.After(in.VotePeriod.Begin) {
			return errors.Wrap(ErrInvalidInput, "assess period must end before the vote begins")
		}
		p := Proposal{FundingAmount: in.FundingAmount}
		amount, err := p.FundingAmountWei()
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return errors.Wrap(ErrInvalidInput, "funding amount is required for business proposals")
		}
	}
	return nil
}

type FeeStatus uint8

const (
	FeeWait FeeStatus = iota
	FeeMining
	FeePaid
	FeeExpired
	FeeInvalid
	FeeIrrelevant
	// FeeUnknown is a status string this client does not recognize. Nothing is paid against it.
	FeeUnknown
)

var feeStatusNames = map[FeeStatus]string{
	FeeWait:       "WAIT",
	FeeMining:     "MINING",
	FeePaid:       "PAID",
	FeeExpired:    "EXPIRED",
	FeeInvalid:    "INVALID",
	FeeIrrelevant: "IRRELEVANT",
	FeeUnknown:    "UNKNOWN",
}

func ParseFeeStatus(s string) FeeStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	for status, name := range feeStatusNames {
		if status != FeeUnknown && name == s {
			return status
		}
	}
	return FeeUnknown
}

func (s FeeStatus) String() string {
	return feeStatusNames[s]
}

// Terminal reports whether no further fee transition can happen.
func (s FeeStatus) Terminal() bool {
	return s == FeePaid || s == FeeExpired || s == FeeInvalid || s == FeeIrrelevant
}

// ProposalFeeQuote is a server-signed description of the on-chain creation call.
// One quote backs exactly one submission attempt.
type ProposalFeeQuote struct {
	ProposalID  string
	Start       uint64
	End         uint64
	StartAssess uint64
	EndAssess   uint64
	Amount      *big.Int
	DocHash     [32]byte
	Title       string
	Signature   []byte
	FeeAmount   *big.Int
	Destination common.Address
	Status      FeeStatus
}

type AssessState uint8

const (
	AssessCreated AssessState = iota
	AssessRejected
	AssessPassed
	AssessInvalid
)

func ParseAssessState(s string) AssessState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "REJECTED":
		return AssessRejected
	case "PASSED":
		return AssessPassed
	case "INVALID":
		return AssessInvalid
	}
	return AssessCreated
}

// AssessCriteria is the fixed order scores are submitted in.
var AssessCriteria = [5]string{"completeness", "realization", "profitability", "attractiveness", "expansion"}

type AssessResult struct {
	NeedEvaluation        bool
	ProposalState         AssessState
	Averages              [5]float64
	AssessParticipantSize int
}

type VoteState uint8

const (
	VoteNone VoteState = iota
	VoteRunning
	VoteApproved
	VoteWithdrawn
	VoteRejected
	VoteInvalidQuorum
	VoteAssessmentFailed
)

func ParseVoteState(s string) VoteState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RUNNING":
		return VoteRunning
	case "APPROVED":
		return VoteApproved
	case "WITHDRAWN":
		return VoteWithdrawn
	case "REJECTED":
		return VoteRejected
	case "INVALID_QUORUM":
		return VoteInvalidQuorum
	case "ASSESSMENT_FAILED":
		return VoteAssessmentFailed
	}
	return VoteNone
}

type Choice uint8

const (
	ChoiceYes Choice = iota
	ChoiceNo
	ChoiceAbstain
)

func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return ChoiceYes, nil
	case "no":
		return ChoiceNo, nil
	case "abstain", "blank":
		return ChoiceAbstain, nil
	}
	return 0, errors.Wrapf(ErrInvalidInput, "unknown ballot choice %q", s)
}

func (c Choice) String() string {
	switch c {
	case ChoiceNo:
		return "no"
	case ChoiceAbstain:
		return "abstain"
	}
	return "yes"
}

type VoteStatus struct {
	IsValidVoter      bool
	NeedVote          bool
	VoteProposalState VoteState
	// VoteResult is indexed by Choice
	VoteResult    [3]*big.Int
	ValidatorSize int
	// CanWithdrawAt is unix seconds, only meaningful when VoteProposalState is VoteApproved
	CanWithdrawAt int64
	IsProposer    bool
	Destination   common.Address
}

type User struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

type PostType uint8

const (
	PostCommentOnActivity PostType = iota
	PostReplyOnComment
	PostBoardArticle
)

func (t PostType) String() string {
	switch t {
	case PostReplyOnComment:
		return "REPLY_ON_COMMENT"
	case PostBoardArticle:
		return "BOARD_ARTICLE"
	}
	return "COMMENT_ON_ACTIVITY"
}

type PostStatus struct {
	IsRead     bool
	IsLike     bool
	IsReported bool
}

type Post struct {
	ID         string
	Type       PostType
	ActivityID string
	ParentID   string
	Content    string
	WriterID   string
	CreatedAt  time.Time
	Status     PostStatus
}

// Draft is a proposal that was never submitted. It only lives in local storage.
type Draft struct {
	ID        string        `json:"id"`
	Input     ProposalInput `json:"input"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
