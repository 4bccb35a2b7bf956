package backend

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// SignDomain is the server-issued EIP-712 domain used for sign-up and sign-in.
type SignDomain struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           int64  `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type SignUpInput struct {
	Address   string
	Username  string
	SignTime  int64
	Signature string
}

type SignInInput struct {
	Address   string
	SignTime  int64
	Signature string
}

type authPayload struct {
	JWT  string     `json:"jwt"`
	User *core.User `json:"user"`
}

func (p *authPayload) toUser() *core.User {
	if p == nil || p.User == nil {
		return nil
	}
	u := *p.User
	u.Token = p.JWT
	return &u
}

type ListVariables struct {
	Where string
	Sort  string
	Limit int
}

type ProposalList struct {
	Count  int
	Values []*core.Proposal
}

type PostInput struct {
	Type       core.PostType
	ActivityID string
	ParentID   string
	Content    string
}

type AssessInput struct {
	ProposalID string
	Scores     [5]int
	TxHash     common.Hash
}

type BallotCommitment struct {
	Signature  string `json:"signature"`
	Commitment string `json:"commitment"`
}

type RecordBallotInput struct {
	ProposalID string
	Commitment string
	Address    string
	TxHash     common.Hash
}

type Ballot struct {
	ID              string `json:"id"`
	Choice          int    `json:"choice"`
	Commitment      string `json:"commitment"`
	TransactionHash string `json:"transactionHash"`
}

type Validator struct {
	ID           string `json:"id"`
	Address      string `json:"address"`
	PublicKey    string `json:"publicKey"`
	AssessUpdate string `json:"assessUpdate"`
	BallotUpdate string `json:"ballotUpdate"`
	HasAssess    bool   `json:"hasAssess"`
	HasBallot    bool   `json:"hasBallot"`
}

type proposalDTO struct {
	ID              string       `json:"id"`
	ProposalID      string       `json:"proposalId"`
	Name            string       `json:"name"`
	Type            string       `json:"type"`
	Status          string       `json:"status"`
	AssessPeriod    *core.Period `json:"assessPeriod"`
	VotePeriod      *core.Period `json:"votePeriod"`
	FundingAmount   string       `json:"fundingAmount"`
	ProposerAddress string       `json:"proposer_address"`
	DocHash         string       `json:"doc_hash"`
	Creator         *struct {
		ID string `json:"id"`
	} `json:"creator"`
	Activities []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"activities"`
}

func (d *proposalDTO) toProposal() *core.Proposal {
	if d == nil {
		return nil
	}
	// an unknown type is kept as Business, the projector still handles it
	typ, _ := core.ParseProposalType(d.Type)
	p := &core.Proposal{
		ID:              d.ID,
		ProposalID:      d.ProposalID,
		Name:            d.Name,
		Type:            typ,
		Status:          core.ParseProposalStatus(d.Status),
		VotePeriod:      d.VotePeriod,
		FundingAmount:   d.FundingAmount,
		ProposerAddress: d.ProposerAddress,
		DocHash:         d.DocHash,
	}
	if typ == core.BusinessProposal {
		p.AssessPeriod = d.AssessPeriod
	}
	if d.Creator != nil {
		p.CreatorID = d.Creator.ID
	}
	for _, a := range d.Activities {
		switch a.Type {
		case "BOARD":
			p.ActivityID = a.ID
		case "NOTICE":
			p.NoticeID = a.ID
		}
	}
	return p
}

func (c *Client) SignInDomain(ctx context.Context) (*SignDomain, error) {
	var out struct {
		SignInDomain *SignDomain `json:"signInDomain"`
	}
	if err := c.Do(ctx, querySignInDomain, nil, &out); err != nil {
		return nil, err
	}
	return out.SignInDomain, nil
}

func (c *Client) IsMemberNameUnique(ctx context.Context, username string) (bool, error) {
	var out struct {
		IsMemberNameUnique *struct {
			Duplicated bool `json:"duplicated"`
		} `json:"isMemberNameUnique"`
	}
	if err := c.Do(ctx, queryMemberNameUnique, map[string]any{"username": username}, &out); err != nil {
		return false, err
	}
	return out.IsMemberNameUnique != nil && !out.IsMemberNameUnique.Duplicated, nil
}

func (c *Client) SignUp(ctx context.Context, in SignUpInput) (*core.User, error) {
	var out struct {
		SignUpForMember *authPayload `json:"signUpForMember"`
	}
	vars := map[string]any{"input": map[string]any{"data": map[string]any{
		"address":   in.Address,
		"username":  in.Username,
		"signTime":  strconv.FormatInt(in.SignTime, 10),
		"signature": in.Signature,
	}}}
	if err := c.Do(ctx, mutationSignUp, vars, &out); err != nil {
		return nil, err
	}
	return out.SignUpForMember.toUser(), nil
}

func (c *Client) SignIn(ctx context.Context, in SignInInput) (*core.User, error) {
	var out struct {
		SignInForMember *authPayload `json:"signInForMember"`
	}
	vars := map[string]any{"input": map[string]any{"data": map[string]any{
		"address":   in.Address,
		"signTime":  strconv.FormatInt(in.SignTime, 10),
		"signature": in.Signature,
	}}}
	if err := c.Do(ctx, mutationSignIn, vars, &out); err != nil {
		return nil, err
	}
	return out.SignInForMember.toUser(), nil
}

func (c *Client) GetProposal(ctx context.Context, id string) (*core.Proposal, error) {
	var out struct {
		ProposalByID *proposalDTO `json:"proposalById"`
	}
	if err := c.Do(ctx, queryProposal, map[string]any{"proposalId": id}, &out); err != nil {
		return nil, err
	}
	return out.ProposalByID.toProposal(), nil
}

func (c *Client) IsProposalJoined(ctx context.Context, id string) (bool, error) {
	var out struct {
		ProposalStatus *struct {
			IsJoined bool `json:"isJoined"`
		} `json:"proposalStatus"`
	}
	if err := c.Do(ctx, queryProposalStatus, map[string]any{"id": id}, &out); err != nil {
		return false, err
	}
	return out.ProposalStatus != nil && out.ProposalStatus.IsJoined, nil
}

func (c *Client) ListProposals(ctx context.Context, vars ListVariables) (*ProposalList, error) {
	var out struct {
		ListProposal *struct {
			Count  int            `json:"count"`
			Values []*proposalDTO `json:"values"`
		} `json:"listProposal"`
	}
	q := map[string]any{"sort": vars.Sort, "limit": vars.Limit}
	if vars.Where != "" {
		q["where"] = vars.Where
	}
	if err := c.Do(ctx, queryListProposals, q, &out); err != nil {
		return nil, err
	}
	list := &ProposalList{}
	if out.ListProposal == nil {
		return list, nil
	}
	list.Count = out.ListProposal.Count
	for _, d := range out.ListProposal.Values {
		list.Values = append(list.Values, d.toProposal())
	}
	return list, nil
}

func (c *Client) JoinProposal(ctx context.Context, id string) (bool, error) {
	var out struct {
		JoinProposal *struct {
			InvalidValidator bool `json:"invalidValidator"`
			Proposal         *struct {
				ID string `json:"id"`
			} `json:"proposal"`
		} `json:"joinProposal"`
	}
	if err := c.Do(ctx, mutationJoinProposal, map[string]any{"id": id}, &out); err != nil {
		return false, err
	}
	j := out.JoinProposal
	return j != nil && j.Proposal != nil && !j.InvalidValidator, nil
}

func (c *Client) CreateProposal(ctx context.Context, in core.ProposalInput) (*core.Proposal, error) {
	data := map[string]any{
		"name":          in.Name,
		"type":          in.Type.String(),
		"description":   in.Description,
		"fundingAmount": in.FundingAmount,
		"logo":          in.Logo,
		"votePeriod":    in.VotePeriod,
	}
	if in.Type == core.BusinessProposal {
		data["assessPeriod"] = in.AssessPeriod
	}
	var out struct {
		CreateProposal *struct {
			Proposal *proposalDTO `json:"proposal"`
		} `json:"createProposal"`
	}
	if err := c.Do(ctx, mutationCreateProposal, map[string]any{"input": map[string]any{"data": data}}, &out); err != nil {
		return nil, err
	}
	if out.CreateProposal == nil {
		return nil, nil
	}
	return out.CreateProposal.Proposal.toProposal(), nil
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (*core.Post, error) {
	data := map[string]any{
		"type":     in.Type.String(),
		"activity": in.ActivityID,
		"content":  []map[string]any{{"__typename": "ComponentPostArticle", "text": in.Content}},
	}
	if in.ParentID != "" {
		data["parentPost"] = in.ParentID
	}
	var out struct {
		CreatePost *struct {
			Post *postDTO `json:"post"`
		} `json:"createPost"`
	}
	if err := c.Do(ctx, mutationCreatePost, map[string]any{"input": map[string]any{"data": data}}, &out); err != nil {
		return nil, err
	}
	if out.CreatePost == nil || out.CreatePost.Post == nil {
		return nil, nil
	}
	return out.CreatePost.Post.toPost(in), nil
}

func (c *Client) ReportPost(ctx context.Context, activityID, postID string) error {
	return c.Do(ctx, mutationReportPost, map[string]any{"postId": postID, "activityId": activityID}, nil)
}

type feeQuoteDTO struct {
	ProposalID  string `json:"proposalId"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	StartAssess int64  `json:"startAssess"`
	EndAssess   int64  `json:"endAssess"`
	Amount      string `json:"amount"`
	DocHash     string `json:"docHash"`
	Title       string `json:"title"`
	Signature   string `json:"signature"`
	FeeAmount   string `json:"feeAmount"`
	Destination string `json:"destination"`
}

// FeeQuote returns the signed creation parameters for a proposal. A nil quote with a status means the
// server has nothing to sign, e.g. the fee was already paid.
func (c *Client) FeeQuote(ctx context.Context, id string) (*core.ProposalFeeQuote, error) {
	var out struct {
		CheckProposalFee *struct {
			Status      string       `json:"status"`
			ProposalFee *feeQuoteDTO `json:"proposalFee"`
		} `json:"checkProposalFee"`
	}
	if err := c.Do(ctx, queryFeeQuote, map[string]any{"proposalId": id}, &out); err != nil {
		return nil, err
	}
	res := out.CheckProposalFee
	if res == nil {
		return nil, nil
	}
	quote := &core.ProposalFeeQuote{Status: core.ParseFeeStatus(res.Status)}
	if d := res.ProposalFee; d != nil {
		if err := d.fill(quote); err != nil {
			return nil, err
		}
	}
	return quote, nil
}

func (d *feeQuoteDTO) fill(q *core.ProposalFeeQuote) error {
	amount, err := parseAmount(d.Amount)
	if err != nil {
		return errors.Wrap(err, "quote amount")
	}
	fee, err := parseAmount(d.FeeAmount)
	if err != nil {
		return errors.Wrap(err, "quote fee amount")
	}
	q.ProposalID = d.ProposalID
	q.Start = uint64(d.Start)
	q.End = uint64(d.End)
	q.StartAssess = uint64(d.StartAssess)
	q.EndAssess = uint64(d.EndAssess)
	q.Amount = amount
	q.FeeAmount = fee
	q.Title = d.Title

	if d.DocHash != "" {
		raw, err := hexutil.Decode(d.DocHash)
		if err != nil || len(raw) != len(q.DocHash) {
			return errors.Errorf("quote doc hash %q", d.DocHash)
		}
		copy(q.DocHash[:], raw)
	}
	if d.Signature != "" {
		sig, err := hexutil.Decode(d.Signature)
		if err != nil {
			return errors.Wrap(err, "quote signature")
		}
		q.Signature = sig
	}
	if common.IsHexAddress(d.Destination) {
		q.Destination = common.HexToAddress(d.Destination)
	}
	return nil
}

func (c *Client) CheckProposalFee(ctx context.Context, id string, txHash common.Hash) (core.FeeStatus, error) {
	var out struct {
		CheckProposalFee *struct {
			Status string `json:"status"`
		} `json:"checkProposalFee"`
	}
	vars := map[string]any{"proposalId": id, "transactionHash": txHash.Hex()}
	if err := c.Do(ctx, mutationCheckFee, vars, &out); err != nil {
		return core.FeeWait, err
	}
	if out.CheckProposalFee == nil {
		return core.FeeWait, errors.New("checkProposalFee returned no status")
	}
	return core.ParseFeeStatus(out.CheckProposalFee.Status), nil
}

func (c *Client) AssessResult(ctx context.Context, id, actor string) (*core.AssessResult, error) {
	var out struct {
		AssessResult *struct {
			NeedEvaluation        bool      `json:"needEvaluation"`
			ProposalState         string    `json:"proposalState"`
			AssessParticipantSize int       `json:"assessParticipantSize"`
			AssessResult          []float64 `json:"assessResult"`
		} `json:"assessResult"`
	}
	if err := c.Do(ctx, queryAssessResult, map[string]any{"id": id, "actor": actor}, &out); err != nil {
		return nil, err
	}
	d := out.AssessResult
	if d == nil {
		return nil, nil
	}
	res := &core.AssessResult{
		NeedEvaluation:        d.NeedEvaluation,
		ProposalState:         core.ParseAssessState(d.ProposalState),
		AssessParticipantSize: d.AssessParticipantSize,
	}
	copy(res.Averages[:], d.AssessResult)
	return res, nil
}

func (c *Client) SubmitAssess(ctx context.Context, in AssessInput) error {
	content := make([]map[string]any, 0, len(in.Scores))
	for i, score := range in.Scores {
		content = append(content, map[string]any{
			"__typename": "ComponentPostScaleAnswer",
			"key":        core.AssessCriteria[i],
			"value":      score,
			"sequence":   i,
		})
	}
	var out struct {
		SubmitAssess *struct {
			Post *struct {
				ID string `json:"id"`
			} `json:"post"`
		} `json:"submitAssess"`
	}
	vars := map[string]any{"input": map[string]any{
		"proposalId":      in.ProposalID,
		"content":         content,
		"transactionHash": in.TxHash.Hex(),
	}}
	if err := c.Do(ctx, mutationSubmitAssess, vars, &out); err != nil {
		return err
	}
	if out.SubmitAssess == nil || out.SubmitAssess.Post == nil {
		return errors.New("submitAssess returned no post")
	}
	return nil
}

func (c *Client) VoteStatus(ctx context.Context, id, actor string) (*core.VoteStatus, error) {
	var out struct {
		VoteStatus *struct {
			IsValidVoter      bool     `json:"isValidVoter"`
			IsProposer        bool     `json:"isProposer"`
			NeedVote          bool     `json:"needVote"`
			VoteProposalState string   `json:"voteProposalState"`
			VoteResult        []string `json:"voteResult"`
			ValidatorSize     string   `json:"validatorSize"`
			CanWithdrawAt     int64    `json:"canWithdrawAt"`
			Destination       string   `json:"destination"`
		} `json:"voteStatus"`
	}
	if err := c.Do(ctx, queryVoteStatus, map[string]any{"id": id, "actor": actor}, &out); err != nil {
		return nil, err
	}
	d := out.VoteStatus
	if d == nil {
		return nil, nil
	}
	vs := &core.VoteStatus{
		IsValidVoter:      d.IsValidVoter,
		NeedVote:          d.NeedVote,
		VoteProposalState: core.ParseVoteState(d.VoteProposalState),
		CanWithdrawAt:     d.CanWithdrawAt,
		IsProposer:        d.IsProposer,
	}
	for i := range vs.VoteResult {
		vs.VoteResult[i] = new(big.Int)
		if i < len(d.VoteResult) {
			v, err := parseAmount(d.VoteResult[i])
			if err != nil {
				return nil, errors.Wrap(err, "vote result")
			}
			vs.VoteResult[i] = v
		}
	}
	if d.ValidatorSize != "" {
		size, err := strconv.Atoi(d.ValidatorSize)
		if err != nil {
			return nil, errors.Wrap(err, "validator size")
		}
		vs.ValidatorSize = size
	}
	if common.IsHexAddress(d.Destination) {
		vs.Destination = common.HexToAddress(d.Destination)
	}
	return vs, nil
}

func (c *Client) SubmitBallot(ctx context.Context, proposalID, address string, choice core.Choice) (*BallotCommitment, error) {
	var out struct {
		SubmitBallot *BallotCommitment `json:"submitBallot"`
	}
	vars := map[string]any{"input": map[string]any{"data": map[string]any{
		"proposalId": proposalID,
		"address":    address,
		"choice":     int(choice),
	}}}
	if err := c.Do(ctx, mutationSubmitBallot, vars, &out); err != nil {
		return nil, err
	}
	return out.SubmitBallot, nil
}

// RecordBallot links an on-chain ballot to the backend. A nil ballot without error means the server
// accepted the call but recorded nothing.
func (c *Client) RecordBallot(ctx context.Context, in RecordBallotInput) (*Ballot, error) {
	var out struct {
		RecordBallot *struct {
			Ballot *Ballot `json:"ballot"`
		} `json:"recordBallot"`
	}
	vars := map[string]any{"input": map[string]any{"data": map[string]any{
		"proposalId":      in.ProposalID,
		"commitment":      in.Commitment,
		"address":         in.Address,
		"transactionHash": in.TxHash.Hex(),
	}}}
	if err := c.Do(ctx, mutationRecordBallot, vars, &out); err != nil {
		return nil, err
	}
	if out.RecordBallot == nil {
		return nil, nil
	}
	return out.RecordBallot.Ballot, nil
}

func (c *Client) UpdateReceipt(ctx context.Context, txHash common.Hash) error {
	return c.Do(ctx, mutationUpdateReceipt, map[string]any{"hash": txHash.Hex()}, nil)
}

func (c *Client) ListValidators(ctx context.Context, proposalID string, limit int) ([]Validator, error) {
	var out struct {
		ListValidators []Validator `json:"listValidators"`
	}
	if err := c.Do(ctx, queryValidators, map[string]any{"id": proposalID, "limit": limit}, &out); err != nil {
		return nil, err
	}
	return out.ListValidators, nil
}

type postDTO struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Activity *struct {
		ID string `json:"id"`
	} `json:"activity"`
	ParentPost *struct {
		ID string `json:"id"`
	} `json:"parentPost"`
	Writer *struct {
		ID string `json:"id"`
	} `json:"writer"`
	CreatedAt string `json:"createdAt"`
}

func (d *postDTO) toPost(in PostInput) *core.Post {
	p := &core.Post{
		ID:         d.ID,
		Type:       in.Type,
		ActivityID: in.ActivityID,
		ParentID:   in.ParentID,
		Content:    in.Content,
	}
	if d.Activity != nil {
		p.ActivityID = d.Activity.ID
	}
	if d.ParentPost != nil {
		p.ParentID = d.ParentPost.ID
	}
	if d.Writer != nil {
		p.WriterID = d.Writer.ID
	}
	p.CreatedAt = parseTime(d.CreatedAt)
	return p
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
