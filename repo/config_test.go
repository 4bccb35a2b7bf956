package repo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	tempDir := t.TempDir()

	r, err := Load(tempDir)
	require.Nil(t, err)

	assert.True(t, Exist(filepath.Join(tempDir, cfgFileName)))
	assert.Equal(t, DefaultConfig(tempDir), r.Config)
	assert.Nil(t, r.Config.Validate())
}

func TestLoadReadsEnvOverride(t *testing.T) {
	tempDir := t.TempDir()

	_, err := Load(tempDir)
	require.Nil(t, err)

	t.Setenv("VOTERA_CHAIN_CHAIN_ID", "34559")
	t.Setenv("VOTERA_WATCH_INTERVAL", "3s")

	r, err := Load(tempDir)
	require.Nil(t, err)
	assert.Equal(t, uint64(34559), r.Config.Chain.ChainID)
	assert.Equal(t, 3*time.Second, r.Config.Watch.Interval)
}

func TestFlushRoundTrip(t *testing.T) {
	tempDir := t.TempDir()

	r := &Repo{Config: DefaultConfig(tempDir)}
	r.Config.Chain.CommonsBudget = "0x0000000000000000000000000000000000001001"
	require.Nil(t, r.Flush())

	loaded, err := Load(tempDir)
	require.Nil(t, err)
	assert.Equal(t, r.Config.Chain.CommonsBudget, loaded.Config.Chain.CommonsBudget)
}

func TestValidate(t *testing.T) {
	c := DefaultConfig(t.TempDir())
	c.Chain.VoteraVote = "not an address"
	assert.NotNil(t, c.Validate())

	c = DefaultConfig(t.TempDir())
	c.Chain.ChainID = 0
	assert.NotNil(t, c.Validate())

	c = DefaultConfig(t.TempDir())
	c.Backend.URL = "::"
	assert.NotNil(t, c.Validate())
}

func TestPath(t *testing.T) {
	r := &Repo{Config: DefaultConfig("/tmp/votera")}
	assert.Equal(t, "/tmp/votera/store", r.Path("store"))
	assert.Equal(t, "/var/key.json", r.Path("/var/key.json"))
	assert.Equal(t, "", r.Path(""))
}

func TestLoadRepoRootFromEnv(t *testing.T) {
	t.Setenv(rootPathEnvVar, "/tmp/from-env")
	p, err := LoadRepoRootFromEnv("")
	require.Nil(t, err)
	assert.Equal(t, "/tmp/from-env", p)

	p, err = LoadRepoRootFromEnv("/explicit")
	require.Nil(t, err)
	assert.Equal(t, "/explicit", p)
}
