package backend

const proposalFields = `
	id
	proposalId
	name
	type
	status
	assessPeriod { begin end }
	votePeriod { begin end }
	fundingAmount
	proposer_address
	doc_hash
	creator { id }
	activities { id type }
`

const (
	querySignInDomain = `query SignInDomain { signInDomain { name version chainId verifyingContract } }`

	queryMemberNameUnique = `query IsMemberNameUnique($username: String!) {
	isMemberNameUnique(username: $username) { username duplicated }
}`

	mutationSignUp = `mutation SignUpForMember($input: SignUpForMemberInput!) {
	signUpForMember(input: $input) { jwt user { id address username } }
}`

	mutationSignIn = `mutation SignInForMember($input: SignInForMemberInput!) {
	signInForMember(input: $input) { jwt user { id address username } }
}`

	queryProposal = `query GetProposalById($proposalId: String!) {
	proposalById(proposalId: $proposalId) {` + proposalFields + `}
}`

	queryProposalStatus = `query GetProposalStatus($id: ID!) { proposalStatus(id: $id) { id isJoined } }`

	queryListProposals = `query ListProposals($where: JSON, $sort: String, $limit: Int) {
	listProposal(where: $where, sort: $sort, limit: $limit) { count values {` + proposalFields + `} }
}`

	mutationJoinProposal = `mutation JoinProposal($id: ID!) { joinProposal(input: { id: $id }) { invalidValidator proposal { id } } }`

	mutationCreateProposal = `mutation CreateProposal($input: createProposalInput!) {
	createProposal(input: $input) { proposal {` + proposalFields + `} }
}`

	mutationCreatePost = `mutation CreatePost($input: createPostInput!) {
	createPost(input: $input) { post { id type activity { id } parentPost { id } content writer { id } createdAt } }
}`

	mutationReportPost = `mutation ReportPost($postId: String!, $activityId: String!) {
	reportPost(input: { postId: $postId, activityId: $activityId }) { interaction { id } }
}`

	queryFeeQuote = `query CheckProposalFee($proposalId: String!) {
	checkProposalFee(proposalId: $proposalId) {
		status
		proposalFee { proposalId start end startAssess endAssess amount docHash title signature feeAmount destination }
	}
}`

	mutationCheckFee = `mutation CheckProposalFee($proposalId: String!, $transactionHash: String!) {
	checkProposalFee(proposalId: $proposalId, transactionHash: $transactionHash) { status }
}`

	queryAssessResult = `query AssessResult($id: String!, $actor: String) {
	assessResult(proposalId: $id, actor: $actor) { isValidVoter isProposer needEvaluation proposalState assessParticipantSize assessResult }
}`

	mutationSubmitAssess = `mutation SubmitAssess($input: submitAssessInput!) {
	submitAssess(input: $input) { post { id } }
}`

	queryVoteStatus = `query VoteStatus($id: String!, $actor: String) {
	voteStatus(proposalId: $id, actor: $actor) {
		isValidVoter isProposer needVote voteProposalState voteResult validatorSize canWithdrawAt destination
	}
}`

	mutationSubmitBallot = `mutation SubmitBallot($input: submitBallotInput!) {
	submitBallot(input: $input) { signature commitment }
}`

	mutationRecordBallot = `mutation RecordBallot($input: recordBallotInput!) {
	recordBallot(input: $input) { ballot { id choice commitment transactionHash } }
}`

	mutationUpdateReceipt = `mutation UpdateReceipt($hash: String!) { updateReceipt(input: { hash: $hash }) { status } }`

	queryValidators = `query ListValidators($id: String!, $limit: Int) {
	listValidators(proposalId: $id, limit: $limit) { id address publicKey assessUpdate ballotUpdate hasAssess hasBallot }
}`

	subscriptionProposalChanged = `subscription ProposalChanged { proposalChanged { id status } }`
)
