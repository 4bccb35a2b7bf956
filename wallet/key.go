package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/bosagora/votera/core"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// Backend is a chain endpoint that can both read state and carry contract calls.
type Backend interface {
	core.Client
	bind.ContractBackend
}

var _ Provider = (*KeyProvider)(nil)

// KeyProvider is a wallet holding a single local key. It never changes chain on request.
type KeyProvider struct {
	Backend

	key  *ecdsa.PrivateKey
	addr common.Address

	mu      sync.Mutex
	exposed bool
}

func NewKeyProvider(backend Backend, key *ecdsa.PrivateKey) *KeyProvider {
	p := &KeyProvider{Backend: backend, key: key}
	if key != nil {
		p.addr = crypto.PubkeyToAddress(key.PublicKey)
	}
	return p
}

// Dial connects to url, retrying with a fibonacci backoff.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	var client *ethclient.Client
	action := func(attempt uint) error {
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	if err := retry.Retry(action, strategy.Limit(5), strategy.Backoff(backoff.Fibonacci(time.Second))); err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return client, nil
}

// LoadKeystore decrypts a geth keystore file.
func LoadKeystore(path, passphrase string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt keystore")
	}
	return key.PrivateKey, nil
}

func (p *KeyProvider) Address() common.Address {
	return p.addr
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if p.key == nil {
		return nil, core.ErrUserRejected
	}
	p.mu.Lock()
	p.exposed = true
	p.mu.Unlock()
	return []common.Address{p.addr}, nil
}

func (p *KeyProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exposed {
		return nil, nil
	}
	return []common.Address{p.addr}, nil
}

func (p *KeyProvider) SignTypedData(ctx context.Context, account common.Address, td apitypes.TypedData) ([]byte, error) {
	if p.key == nil || account != p.addr {
		return nil, core.ErrUserRejected
	}
	hash, err := TypedDataHash(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, p.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (p *KeyProvider) NewTransactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if p.key == nil || account != p.addr {
		return nil, core.ErrUserRejected
	}
	return bind.NewKeyedTransactorWithChainID(p.key, chainID)
}

func (p *KeyProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	current, err := p.ChainID(ctx)
	if err != nil {
		return err
	}
	if current.Cmp(chainID) != 0 {
		return fmt.Errorf("endpoint serves chain %s, cannot switch to %s", current, chainID)
	}
	return nil
}

// TypedDataHash is the EIP-712 digest that gets signed for td.
func TypedDataHash(td apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(err, "hash domain")
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, errors.Wrap(err, "hash message")
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}
