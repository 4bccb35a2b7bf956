package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/bosagora/votera/assess"
	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/ballot"
	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/fee"
	"github.com/bosagora/votera/proposal"
	"github.com/bosagora/votera/repo"
	"github.com/bosagora/votera/session"
	"github.com/bosagora/votera/storage"
	"github.com/bosagora/votera/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	envWalletPassphrase = "VOTERA_WALLET_PASSPHRASE"
	envStorePassphrase  = "VOTERA_STORE_PASSPHRASE"

	envFileName = ".env"
)

// client is everything one command invocation needs, wired from the repo config.
type client struct {
	repo   *repo.Repo
	logger *logrus.Logger

	wallet    *wallet.Connection
	backend   *backend.Client
	store     *storage.Store
	session   *session.Authority
	proposals *proposal.Repository
	fee       *fee.Coordinator
	assess    *assess.Coordinator
	ballot    *ballot.Coordinator
	vote      *contract.VoteraVote
	budget    *contract.CommonsBudget

	closers []func() error
}

func setup(ctx *cli.Context) (*client, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	if envFile := filepath.Join(p, envFileName); repo.Exist(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	r, err := repo.Load(p)
	if err != nil {
		return nil, err
	}
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	err = log.Initialize(
		log.WithReportCaller(cfg.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(cfg.RepoRoot, repo.LogsDirName)),
		log.WithFileName(cfg.Log.Filename),
		log.WithMaxAge(cfg.Log.MaxAge),
		log.WithRotationTime(cfg.Log.RotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("log initialize: %w", err)
	}
	logger := log.New()
	logger.SetLevel(log.ParseLevel(cfg.Log.Level))

	c := &client{repo: r, logger: logger}

	eth, err := wallet.Dial(ctx.Context, cfg.Chain.DialUrl)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() error {
		eth.Close()
		return nil
	})

	key, err := loadKey(r)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.wallet = wallet.NewConnection(wallet.NewKeyProvider(eth, key), new(big.Int).SetUint64(cfg.Chain.ChainID), logger.WithField("module", "wallet"))

	guest := ctx.Bool("guest")
	if c.store, err = c.openStore(guest); err != nil {
		c.Close()
		return nil, err
	}

	c.backend = backend.NewClient(cfg.Backend.URL, cfg.Backend.WSURL, cfg.Backend.Timeout, logger.WithField("module", "backend"))
	c.session = session.NewAuthority(c.backend, c.wallet, c.store, logger.WithField("module", "session"))
	if guest {
		c.session.SetGuestMode(true)
	} else if c.session.Restore() {
		logger.Debug("session restored")
	}

	c.proposals = proposal.NewRepository(c.backend, c.session, c.store, logger.WithField("module", "proposal"))

	c.vote = contract.NewVoteraVote(common.HexToAddress(cfg.Chain.VoteraVote), eth)
	c.budget = contract.NewCommonsBudget(common.HexToAddress(cfg.Chain.CommonsBudget), eth)
	c.fee = fee.NewCoordinator(c.backend, c.wallet, fee.ContractBinder(eth), logger.WithField("module", "fee"))
	c.assess = assess.NewCoordinator(c.backend, c.wallet, c.vote, c.proposals, c.session, logger.WithField("module", "assess"))
	c.ballot = ballot.NewCoordinator(c.backend, c.wallet, c.vote, c.budget, c.proposals, c.session, logger.WithField("module", "ballot"))

	c.wallet.Connect(ctx.Context)
	return c, nil
}

func loadKey(r *repo.Repo) (*ecdsa.PrivateKey, error) {
	path := r.Path(r.Config.Wallet.Keystore)
	if path == "" || !repo.Exist(path) {
		// no key file: the wallet reports NotConnected
		return nil, nil
	}
	return wallet.LoadKeystore(path, os.Getenv(envWalletPassphrase))
}

func (c *client) openStore(guest bool) (*storage.Store, error) {
	if guest {
		return storage.Open(storage.NewMemoryKV(), uuid.NewString())
	}
	passphrase := os.Getenv(envStorePassphrase)
	if passphrase == "" {
		passphrase = os.Getenv(envWalletPassphrase)
	}
	if passphrase == "" {
		return nil, errors.Errorf("%s is not set", envStorePassphrase)
	}
	store, closeDB, err := storage.OpenDir(c.repo.Path(c.repo.Config.Storage.Dir), passphrase)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closeDB)
	return store, nil
}

func (c *client) Close() {
	if c.ballot != nil {
		c.ballot.Drain()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warnf("close: %s", err)
		}
	}
}

// run sets up a client, runs fn and tears everything down. SIGINT or SIGTERM cancels fn's context.
func run(fn func(ctx context.Context, c *client, cctx *cli.Context) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		c, err := setup(cctx)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return fn(ctx, c, cctx)
	}
}

// loadProposal fetches the proposal named by the --id flag into the repository.
func (c *client) loadProposal(ctx context.Context, cctx *cli.Context) (*core.Proposal, error) {
	id := cctx.String("id")
	if id == "" {
		return nil, errors.New("--id is required")
	}
	p, err := c.proposals.FetchProposal(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch proposal %s", id)
	}
	return p, nil
}

// project gathers what the projector needs for p. Missing results only narrow the actions.
func (c *client) project(ctx context.Context, p *core.Proposal) core.Projection {
	var assessResult *core.AssessResult
	var voteStatus *core.VoteStatus
	if c.session.User() != nil {
		if p.Type == core.BusinessProposal && assess.Assessable(p.Status) {
			res, err := c.assess.Result(ctx, p.ID)
			if err != nil {
				c.logger.Debugf("assess result: %s", err)
			}
			assessResult = res
		}
		switch p.Status {
		case core.StatusPendingVote, core.StatusVote, core.StatusClosed, core.StatusCancel:
			vs, err := c.ballot.Status(ctx, p.ID)
			if err != nil {
				c.logger.Debugf("vote status: %s", err)
			}
			voteStatus = vs
		}
	}
	return core.Project(core.ProjectionFor(p, c.session.Now(), assessResult, voteStatus))
}

type joiner interface {
	EnsureJoined(ctx context.Context) error
}

// join runs the explicit join step in front of a joined-only action and reports when it fails.
func join(ctx context.Context, j joiner) bool {
	if err := j.EnsureJoined(ctx); err != nil {
		report(false, core.NotJoined, common.Hash{})
		return false
	}
	return true
}
