package repo

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	rootPathEnvVar = "VOTERA_PATH"

	envPrefix = "VOTERA"

	cfgFileName = "votera.toml"

	defaultRepoRoot = "~/.votera"

	LogsDirName = "logs"
)

type Repo struct {
	Config *Config
}

// Exist check if the file with the given path exits.
func Exist(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}

// Load reads the config under repoRoot, writing the default one first when there is none.
func Load(repoRoot string) (*Repo, error) {
	rootPath, err := LoadRepoRootFromEnv(repoRoot)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(rootPath)
	cfgPath := filepath.Join(rootPath, cfgFileName)

	if !Exist(cfgPath) {
		if err := os.MkdirAll(rootPath, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create repo root")
		}
		r := &Repo{Config: cfg}
		if err := r.Flush(); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}
		return r, nil
	}

	if err := CheckWritable(rootPath); err != nil {
		return nil, err
	}
	if err := readConfigFromFile(cfgPath, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", cfgPath)
	}
	return &Repo{Config: cfg}, nil
}

// Flush writes the config back, environment overrides included.
func (r *Repo) Flush() error {
	cfgPath := filepath.Join(r.Config.RepoRoot, cfgFileName)
	if err := writeConfig(cfgPath, r.Config); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	if err := readConfigFromFile(cfgPath, r.Config); err != nil {
		return errors.Wrap(err, "failed to apply environment")
	}
	return writeConfig(cfgPath, r.Config)
}

// Path resolves p against the repo root unless it is already absolute.
func (r *Repo) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Config.RepoRoot, p)
}

// Validate checks the values a client cannot start without.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
		return errors.Wrap(err, "backend.url")
	}
	if c.Backend.WSURL != "" {
		if _, err := url.ParseRequestURI(c.Backend.WSURL); err != nil {
			return errors.Wrap(err, "backend.ws_url")
		}
	}
	if c.Chain.DialUrl == "" {
		return errors.New("chain.dial_url is empty")
	}
	if c.Chain.ChainID == 0 {
		return errors.New("chain.chain_id is empty")
	}
	for name, addr := range map[string]string{
		"chain.commons_budget": c.Chain.CommonsBudget,
		"chain.votera_vote":    c.Chain.VoteraVote,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return errors.Errorf("%s: %q is not an address", name, addr)
		}
	}
	return nil
}

func writeConfig(cfgPath string, config any) error {
	raw, err := MarshalConfig(config)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, []byte(raw), 0644)
}

func MarshalConfig(config any) (string, error) {
	buf := bytes.NewBuffer([]byte{})
	e := toml.NewEncoder(buf)
	e.SetIndentTables(true)
	e.SetArraysMultiline(true)
	if err := e.Encode(config); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func LoadRepoRootFromEnv(repoRoot string) (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	if repoRoot = os.Getenv(rootPathEnvVar); repoRoot != "" {
		return repoRoot, nil
	}
	return homedir.Expand(defaultRepoRoot)
}

func readConfigFromFile(cfgFilePath string, config any) error {
	vp := viper.New()
	vp.SetConfigFile(cfgFilePath)
	vp.SetConfigType("toml")
	vp.AutomaticEnv()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := vp.ReadInConfig(); err != nil {
		return err
	}
	return vp.Unmarshal(config)
}

func CheckWritable(dir string) error {
	_, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0755)
	case os.IsPermission(err):
		return fmt.Errorf("cannot write to %s, incorrect permissions", dir)
	case err != nil:
		return err
	}

	check := filepath.Join(dir, ".writable")
	fi, err := os.Create(check)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%s is not writeable by the current user", dir)
		}
		return fmt.Errorf("unexpected error while checking writeablility of repo root: %s", err)
	}
	fi.Close()
	return os.Remove(check)
}
