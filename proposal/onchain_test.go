package proposal

import (
	"context"
	"testing"

	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	registeredID = "0x1111111111111111111111111111111111111111111111111111111111111111"
	docHash      = "0x2222222222222222222222222222222222222222222222222222222222222222"
	proposer     = "0x00000000000000000000000000000000000000aa"
)

type fakeChain struct {
	data *contract.ProposalData
	err  error
	ids  [][32]byte
}

func (c *fakeChain) GetProposalData(opts *bind.CallOpts, id [32]byte) (*contract.ProposalData, error) {
	c.ids = append(c.ids, id)
	return c.data, c.err
}

func TestVerifyOnChain(t *testing.T) {
	b := newFakeBackend()
	b.proposals["p1"].ProposalID = registeredID
	b.proposals["p1"].DocHash = docHash
	b.proposals["p1"].ProposerAddress = proposer
	r := newRepository(t, b, true)

	chain := &fakeChain{data: &contract.ProposalData{
		DocHash:  common.HexToHash(docHash),
		Proposer: common.HexToAddress(proposer),
	}}

	_, err := r.VerifyOnChain(context.Background(), chain)
	assert.Equal(t, core.ErrProposalNotLoaded, err)

	_, err = r.FetchProposal(context.Background(), "p1")
	require.Nil(t, err)

	out, err := r.VerifyOnChain(context.Background(), chain)
	require.Nil(t, err)
	assert.True(t, out.DocHashMatches)
	assert.True(t, out.ProposerMatches)
	require.Len(t, chain.ids, 1)
	assert.Equal(t, common.HexToHash(registeredID), common.Hash(chain.ids[0]))

	chain.data = &contract.ProposalData{DocHash: common.HexToHash("0x01"), Proposer: common.HexToAddress("0xbb")}
	out, err = r.VerifyOnChain(context.Background(), chain)
	require.Nil(t, err)
	assert.False(t, out.DocHashMatches)
	assert.False(t, out.ProposerMatches)

	chain.err = errors.New("execution reverted")
	_, err = r.VerifyOnChain(context.Background(), chain)
	assert.NotNil(t, err)
}

func TestVerifyOnChainUnregistered(t *testing.T) {
	r := newRepository(t, newFakeBackend(), true)
	_, err := r.FetchProposal(context.Background(), "p2")
	require.Nil(t, err)

	chain := &fakeChain{}
	_, err = r.VerifyOnChain(context.Background(), chain)
	assert.Equal(t, ErrNotRegistered, err)
	assert.Empty(t, chain.ids)
}
