package contract

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

type codeError struct {
	code int
}

func (e *codeError) Error() string  { return fmt.Sprintf("code %d", e.code) }
func (e *codeError) ErrorCode() int { return e.code }

func revertData(t *testing.T, reason string) string {
	typ, err := abi.NewType("string", "", nil)
	require.Nil(t, err)
	packed, err := abi.Arguments{{Type: typ}}.Pack(reason)
	require.Nil(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(selector, packed...))
}

func TestClassifyFromRevertData(t *testing.T) {
	err := &dataError{msg: "execution reverted", data: revertData(t, "InvalidFee")}
	assert.Equal(t, RevertInvalidFee, Classify(err))

	wrapped := errors.Wrap(&dataError{msg: "execution reverted", data: revertData(t, "AlreadyWithdrawn")}, "send")
	assert.Equal(t, RevertAlreadyWithdrawn, Classify(wrapped))
}

func TestClassifyFromMessage(t *testing.T) {
	tests := []struct {
		err  error
		code RevertCode
	}{
		{errors.New("execution reverted: AlreadyExistProposal"), RevertAlreadyExistProposal},
		{errors.New("execution reverted: NotEnoughBudget"), RevertNotEnoughBudget},
		{errors.New("execution reverted: E000"), RevertE000},
		{errors.New("execution reverted: E001"), RevertE001},
		{errors.New("execution reverted: reason NotAuthorized here"), RevertNotAuthorized},
		{errors.New("execution reverted: something else"), RevertUnknown},
		{errors.New("execution reverted"), RevertUnknown},
		{errors.New("insufficient funds for gas"), RevertNone},
		{nil, RevertNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, Classify(tt.err), "%v", tt.err)
	}
}

func TestIsUserRejected(t *testing.T) {
	assert.True(t, IsUserRejected(core.ErrUserRejected))
	assert.True(t, IsUserRejected(errors.Wrap(core.ErrUserRejected, "sign")))
	assert.True(t, IsUserRejected(&codeError{code: 4001}))
	assert.True(t, IsUserRejected(errors.New("MetaMask Tx Signature: User denied transaction signature.")))
	assert.False(t, IsUserRejected(&codeError{code: -32000}))
	assert.False(t, IsUserRejected(nil))
}

func TestRevertCodeString(t *testing.T) {
	assert.Equal(t, "InvalidFee", RevertInvalidFee.String())
	assert.Equal(t, "none", RevertNone.String())
	assert.Equal(t, "unknown", RevertUnknown.String())
}

func TestParseProposalID(t *testing.T) {
	id, err := ParseProposalID("0x" + "11" + "00000000000000000000000000000000000000000000000000000000000022")
	require.Nil(t, err)
	assert.Equal(t, byte(0x11), id[0])
	assert.Equal(t, byte(0x22), id[31])

	_, err = ParseProposalID("0x1234")
	assert.NotNil(t, err)
	_, err = ParseProposalID("not hex")
	assert.NotNil(t, err)
}

func TestABIArgumentTypes(t *testing.T) {
	var id, hash [32]byte

	_, err := commonsBudgetABI.Pack("createFundProposal", id, "title", uint64(1), uint64(2), uint64(3), uint64(4), hash, big.NewInt(10), []byte{1})
	assert.Nil(t, err)
	_, err = commonsBudgetABI.Pack("createSystemProposal", id, "title", uint64(1), uint64(2), hash, []byte{1})
	assert.Nil(t, err)
	_, err = commonsBudgetABI.Pack("withdraw", id)
	assert.Nil(t, err)
	_, err = voteraVoteABI.Pack("submitAssess", id, []uint64{1, 2, 3, 4, 5})
	assert.Nil(t, err)
	_, err = voteraVoteABI.Pack("submitBallot", id, hash, []byte{1})
	assert.Nil(t, err)
}
