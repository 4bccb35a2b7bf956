package repo

import (
	"time"
)

type Config struct {
	RepoRoot string  `mapstructure:"-" toml:"-"`
	Backend  Backend `mapstructure:"backend" toml:"backend"`
	Chain    Chain   `mapstructure:"chain" toml:"chain"`
	Wallet   Wallet  `mapstructure:"wallet" toml:"wallet"`
	Storage  Storage `mapstructure:"storage" toml:"storage"`
	Watch    Watch   `mapstructure:"watch" toml:"watch"`
	Log      Log     `mapstructure:"log" toml:"log"`
}

type Backend struct {
	// URL is the GraphQL HTTP endpoint
	URL string `mapstructure:"url" toml:"url"`
	// WSURL is the GraphQL subscription endpoint, empty disables push updates
	WSURL   string        `mapstructure:"ws_url" toml:"ws_url"`
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
}

type Chain struct {
	DialUrl string `mapstructure:"dial_url" toml:"dial_url"`
	// ChainID is the chain the server is deployed on, a wallet on any other chain is OtherChain
	ChainID       uint64 `mapstructure:"chain_id" toml:"chain_id"`
	CommonsBudget string `mapstructure:"commons_budget" toml:"commons_budget"`
	VoteraVote    string `mapstructure:"votera_vote" toml:"votera_vote"`
}

type Wallet struct {
	// Keystore is an encrypted key file, the passphrase comes from VOTERA_WALLET_PASSPHRASE
	Keystore string `mapstructure:"keystore" toml:"keystore"`
}

type Storage struct {
	// Dir holds the encrypted local store, relative paths are under the repo root
	Dir string `mapstructure:"dir" toml:"dir"`
}

type Watch struct {
	Interval time.Duration `mapstructure:"interval" toml:"interval"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot: repoRoot,
		Backend: Backend{
			URL:     "http://localhost:1337/graphql",
			WSURL:   "ws://localhost:1337/graphql",
			Timeout: 30 * time.Second,
		},
		Chain: Chain{
			DialUrl: "http://localhost:8545",
			ChainID: 2019,
		},
		Wallet: Wallet{
			Keystore: "keystore.json",
		},
		Storage: Storage{
			Dir: "store",
		},
		Watch: Watch{
			Interval: 10 * time.Second,
		},
		Log: Log{
			Level:        "info",
			Filename:     "votera.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
	}
}
