// Package session turns a wallet signature into a backend session and keeps the signed-in identity.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/storage"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// sessionKey holds the durable credential written by Login(ctx, true).
const sessionKey = "session.user"

var (
	ErrMissingToken  = errors.New("user has no session token")
	ErrUnknownMember = errors.New("user address is not a known member")
)

// Backend is the part of the backend API used for authentication.
type Backend interface {
	SignInDomain(ctx context.Context) (*backend.SignDomain, error)
	IsMemberNameUnique(ctx context.Context, username string) (bool, error)
	SignUp(ctx context.Context, in backend.SignUpInput) (*core.User, error)
	SignIn(ctx context.Context, in backend.SignInInput) (*core.User, error)
	SetToken(token string)
}

type Wallet interface {
	State() wallet.State
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

var (
	_ Backend = (*backend.Client)(nil)
	_ Wallet  = (*wallet.Connection)(nil)
)

// Result is what Enroll and Login report. MessageID is one of core.AuthMessageIDs on failure.
type Result struct {
	Succeeded bool
	User      *core.User
	MessageID core.MessageID
}

func fail(id core.MessageID) Result {
	return Result{MessageID: id}
}

type Authority struct {
	backend Backend
	wallet  Wallet
	store   *storage.Store
	logger  logrus.FieldLogger

	Now func() time.Time

	mu    sync.RWMutex
	user  *core.User
	guest bool
}

func NewAuthority(b Backend, w Wallet, store *storage.Store, logger logrus.FieldLogger) *Authority {
	return &Authority{
		backend: b,
		wallet:  w,
		store:   store,
		logger:  logger,
		Now:     time.Now,
	}
}

func (a *Authority) User() *core.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *Authority) IsGuest() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.guest
}

// SetGuestMode switches browsing without an identity on or off. Entering guest mode signs out.
func (a *Authority) SetGuestMode(guest bool) {
	if guest {
		a.SignOut()
	}
	a.mu.Lock()
	a.guest = guest
	a.mu.Unlock()
}

// Members returns the known members list.
func (a *Authority) Members() ([]core.User, error) {
	blob, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	return blob.Members, nil
}

func (a *Authority) member(address string) (core.User, bool, error) {
	members, err := a.Members()
	if err != nil {
		return core.User{}, false, err
	}
	m, ok := lo.Find(members, func(m core.User) bool {
		return strings.EqualFold(m.Address, address)
	})
	return m, ok, nil
}

// Enroll signs up the connected wallet under username.
func (a *Authority) Enroll(ctx context.Context, username string) Result {
	state := a.wallet.State()
	if state.Status != wallet.Connected {
		return fail(core.DeviceUnconnected)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fail(core.AuthMissingInput)
	}
	address := state.Account.Hex()

	_, enrolled, err := a.member(address)
	if err != nil {
		a.logger.Errorf("read members: %s", err)
		return fail(core.SystemOther)
	}
	if enrolled {
		return fail(core.AuthInvalid)
	}

	unique, err := a.backend.IsMemberNameUnique(ctx, username)
	if err != nil {
		return a.failed("check username", err)
	}
	if !unique {
		return fail(core.AuthInvalid)
	}

	domain, err := a.backend.SignInDomain(ctx)
	if err != nil {
		return a.failed("sign domain", err)
	}
	if domain == nil {
		return fail(core.SystemReady)
	}

	signTime := a.Now().Unix()
	sig, err := a.wallet.SignTypedData(ctx, SignUpTypedData(domain, state.Account, username, signTime))
	if err != nil {
		return a.failed("sign up signature", err)
	}

	user, err := a.backend.SignUp(ctx, backend.SignUpInput{
		Address:   address,
		Username:  username,
		SignTime:  signTime,
		Signature: hexutil.Encode(sig),
	})
	if err != nil {
		return a.failed("sign up", err)
	}
	if user == nil || user.Token == "" {
		a.logger.Warn("sign up returned no user")
		return fail(core.SystemOther)
	}
	if user.Address == "" {
		user.Address = address
	}
	if ctx.Err() != nil {
		return fail(core.SystemOther)
	}

	if err := a.addMember(*user); err != nil {
		a.logger.Errorf("store member: %s", err)
		return fail(core.SystemOther)
	}
	a.setUser(user)
	a.logger.WithField("address", address).Info("member enrolled")
	return Result{Succeeded: true, User: a.User()}
}

// Login signs in the connected wallet. With keepSession the credential survives restarts.
func (a *Authority) Login(ctx context.Context, keepSession bool) Result {
	state := a.wallet.State()
	if state.Status != wallet.Connected {
		return fail(core.DeviceUnconnected)
	}
	address := state.Account.Hex()

	if _, ok, err := a.member(address); err != nil {
		a.logger.Errorf("read members: %s", err)
		return fail(core.SystemOther)
	} else if !ok {
		return fail(core.DeviceUnregistered)
	}

	domain, err := a.backend.SignInDomain(ctx)
	if err != nil {
		return a.failed("sign domain", err)
	}
	if domain == nil {
		return fail(core.SystemReady)
	}

	signTime := a.Now().Unix()
	sig, err := a.wallet.SignTypedData(ctx, SignInTypedData(domain, state.Account, signTime))
	if err != nil {
		return a.failed("sign in signature", err)
	}

	user, err := a.backend.SignIn(ctx, backend.SignInInput{
		Address:   address,
		SignTime:  signTime,
		Signature: hexutil.Encode(sig),
	})
	if err != nil {
		return a.failed("sign in", err)
	}
	if user == nil || user.Token == "" {
		a.logger.Warn("sign in returned no user")
		return fail(core.SystemOther)
	}
	if user.Address == "" {
		user.Address = address
	}
	if ctx.Err() != nil {
		return fail(core.SystemOther)
	}

	if err := a.addMember(*user); err != nil {
		a.logger.Errorf("store member: %s", err)
	}
	if keepSession {
		if err := a.persist(user); err != nil {
			a.logger.Errorf("store session: %s", err)
		}
	}
	a.setUser(user)
	return Result{Succeeded: true, User: a.User()}
}

// SetEnrolledUser trusts user as the current identity. It refuses users without a token or whose
// address is not a known member, and leaves the session untouched when it does.
func (a *Authority) SetEnrolledUser(user core.User) error {
	if user.Token == "" {
		return ErrMissingToken
	}
	_, ok, err := a.member(user.Address)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrUnknownMember, user.Address)
	}
	a.setUser(&user)
	return nil
}

// Restore brings back a durable session. Expired or unreadable credentials are dropped.
func (a *Authority) Restore() bool {
	raw, ok, err := a.store.Get(sessionKey)
	if err != nil || !ok {
		return false
	}

	var user core.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		a.logger.Warnf("drop unreadable session: %s", err)
		a.store.Reset(sessionKey)
		return false
	}
	if expired, err := a.tokenExpired(user.Token); err != nil || expired {
		a.logger.Info("drop expired session")
		a.store.Reset(sessionKey)
		return false
	}
	if err := a.SetEnrolledUser(user); err != nil {
		a.logger.Warnf("drop session: %s", err)
		a.store.Reset(sessionKey)
		return false
	}
	return true
}

func (a *Authority) SignOut() {
	a.mu.Lock()
	a.user = nil
	a.mu.Unlock()
	a.backend.SetToken("")
	a.store.Reset(sessionKey)
}

// ResetEnroll signs out and forgets the connected wallet's membership.
func (a *Authority) ResetEnroll() error {
	address := a.wallet.State().Account.Hex()
	if u := a.User(); u != nil {
		address = u.Address
	}
	a.SignOut()
	return a.store.Update(func(b *storage.Blob) error {
		b.Members = lo.Reject(b.Members, func(m core.User, _ int) bool {
			return strings.EqualFold(m.Address, address)
		})
		return nil
	})
}

func (a *Authority) addMember(user core.User) error {
	return a.store.Update(func(b *storage.Blob) error {
		_, i, found := lo.FindIndexOf(b.Members, func(m core.User) bool {
			return strings.EqualFold(m.Address, user.Address)
		})
		if found {
			b.Members[i].Token = user.Token
			return nil
		}
		b.Members = append(b.Members, user)
		return nil
	})
}

func (a *Authority) persist(user *core.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return a.store.Set(sessionKey, string(raw))
}

func (a *Authority) setUser(user *core.User) {
	u := *user
	a.mu.Lock()
	a.user = &u
	a.guest = false
	a.mu.Unlock()
	a.backend.SetToken(u.Token)
}

func (a *Authority) tokenExpired(token string) (bool, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, err
	}
	if exp == nil {
		return false, nil
	}
	return !a.Now().Before(exp.Time), nil
}

// failed reports an auth failure. Cancellation by the user is not logged as an error.
func (a *Authority) failed(step string, err error) Result {
	id := ErrorAuthResult(err)
	if id == core.AuthCancelInput {
		a.logger.Infof("%s canceled by user", step)
	} else {
		a.logger.Errorf("%s: %s", step, err)
	}
	return fail(id)
}

// SignUpTypedData is the EIP-712 payload signed by Enroll.
func SignUpTypedData(d *backend.SignDomain, account common.Address, username string, signTime int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypes(d),
			"SignUp": {
				{Name: "myWallet", Type: "address"},
				{Name: "userName", Type: "string"},
				{Name: "signTime", Type: "uint256"},
			},
		},
		PrimaryType: "SignUp",
		Domain:      typedDomain(d),
		Message: apitypes.TypedDataMessage{
			"myWallet": account.Hex(),
			"userName": username,
			"signTime": strconv.FormatInt(signTime, 10),
		},
	}
}

// SignInTypedData is the EIP-712 payload signed by Login.
func SignInTypedData(d *backend.SignDomain, account common.Address, signTime int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypes(d),
			"SignIn": {
				{Name: "myWallet", Type: "address"},
				{Name: "signTime", Type: "uint256"},
			},
		},
		PrimaryType: "SignIn",
		Domain:      typedDomain(d),
		Message: apitypes.TypedDataMessage{
			"myWallet": account.Hex(),
			"signTime": strconv.FormatInt(signTime, 10),
		},
	}
}

func domainTypes(d *backend.SignDomain) []apitypes.Type {
	types := []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	}
	if d.VerifyingContract != "" {
		types = append(types, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	return types
}

func typedDomain(d *backend.SignDomain) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: d.VerifyingContract,
	}
}
