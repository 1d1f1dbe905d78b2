package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daoservice/govsync/internal/domain/config"
)

const anvilKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProvider_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Provider(SetupViper(dir, nil))
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Empty(t, cfg.ConfigSource)
	assert.Equal(t, config.DatabaseDriverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, ".govsync", "govsync.sqlite"), cfg.Database.DSN)
	assert.Equal(t, DefaultPollInterval, cfg.Reconcile.PollInterval)
	assert.Equal(t, DefaultReadTimeout, cfg.Network.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Network.WriteTimeout)
	assert.Equal(t, DefaultSubjectPrefix, cfg.Events.SubjectPrefix)
	assert.Empty(t, cfg.Signer.Address)
}

func TestProvider_ConfigFile(t *testing.T) {
	t.Run("reads govsync.toml with env references", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("GOVSYNC_TEST_RPC", "http://127.0.0.1:8545")
		path := writeFile(t, dir, ConfigFileName, `
[network]
rpc_url = "${GOVSYNC_TEST_RPC}"
chain_id = 31337

[reconcile]
poll_interval = "2s"

[events]
nats_url = "nats://127.0.0.1:4222"
subject_prefix = "dao.events"
`)

		cfg, err := Provider(SetupViper(dir, nil))
		require.NoError(t, err)

		assert.Equal(t, path, cfg.ConfigSource)
		assert.Equal(t, "http://127.0.0.1:8545", cfg.Network.RPCURL)
		assert.Equal(t, uint64(31337), cfg.Network.ChainID)
		assert.Equal(t, 2*time.Second, cfg.Reconcile.PollInterval)
		assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NatsURL)
		assert.Equal(t, "dao.events", cfg.Events.SubjectPrefix)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName, "[network]\nrpc_url = \"http://file:8545\"\n")
		t.Setenv("GOVSYNC_NETWORK_RPC_URL", "http://env:8545")

		cfg, err := Provider(SetupViper(dir, nil))
		require.NoError(t, err)
		assert.Equal(t, "http://env:8545", cfg.Network.RPCURL)
	})

	t.Run("unset variable reference", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName, "[network]\nrpc_url = \"${GOVSYNC_TEST_SURELY_UNSET}\"\n")

		_, err := Provider(SetupViper(dir, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network.rpc_url references ${GOVSYNC_TEST_SURELY_UNSET} which is not set")
	})

	t.Run("unknown section", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName, "[profile]\nname = \"x\"\n")

		_, err := Provider(SetupViper(dir, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown section [profile]")
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		dir := t.TempDir()
		v := SetupViper(dir, nil)
		v.Set("config", filepath.Join(dir, "missing.toml"))

		_, err := Provider(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.toml")
	})

	t.Run("dotenv feeds references", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".env", "GOVSYNC_TEST_DOTENV_RPC=http://dotenv:8545\n")
		writeFile(t, dir, ConfigFileName, "[network]\nrpc_url = \"${GOVSYNC_TEST_DOTENV_RPC}\"\n")
		t.Cleanup(func() { os.Unsetenv("GOVSYNC_TEST_DOTENV_RPC") })

		cfg, err := Provider(SetupViper(dir, nil))
		require.NoError(t, err)
		assert.Equal(t, "http://dotenv:8545", cfg.Network.RPCURL)
	})
}

func TestProvider_Validation(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{
			name:    "postgres requires dsn",
			set:     map[string]any{"database.driver": "postgres"},
			wantErr: "database.dsn is required",
		},
		{
			name:    "unknown driver",
			set:     map[string]any{"database.driver": "mysql"},
			wantErr: `unsupported database driver "mysql"`,
		},
		{
			name:    "non-positive poll interval",
			set:     map[string]any{"reconcile.poll_interval": "0s"},
			wantErr: "reconcile.poll_interval must be positive",
		},
		{
			name:    "zero read timeout",
			set:     map[string]any{"network.read_timeout": "0s"},
			wantErr: "network.read_timeout must be positive",
		},
		{
			name:    "negative write timeout",
			set:     map[string]any{"network.write_timeout": "-1s"},
			wantErr: "network.write_timeout must be positive",
		},
		{
			name:    "zero receipt poll",
			set:     map[string]any{"network.receipt_poll": "0s"},
			wantErr: "network.receipt_poll must be positive",
		},
		{
			name:    "bad private key",
			set:     map[string]any{"signer.private_key": "0x1234"},
			wantErr: "invalid signer.private_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := SetupViper(t.TempDir(), nil)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Provider(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProvider_SignerAddress(t *testing.T) {
	v := SetupViper(t.TempDir(), nil)
	v.Set("signer.private_key", anvilKey)

	cfg, err := Provider(v)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", cfg.Signer.Address)
}

func TestSetupViper_BindsFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().String("rpc-url", "", "")
	cmd.Flags().String("db-driver", "", "")
	cmd.Flags().String("db-dsn", "", "")
	cmd.Flags().Duration("poll-interval", 0, "")
	cmd.Flags().Bool("non-interactive", false, "")
	cmd.Flags().Bool("yes", false, "")
	require.NoError(t, cmd.ParseFlags([]string{
		"--rpc-url", "http://flag:8545",
		"--db-driver", "postgres",
		"--db-dsn", "postgres://gov@db/govsync",
		"--poll-interval", "750ms",
		"--non-interactive",
		"--yes",
	}))

	cfg, err := Provider(SetupViper(t.TempDir(), cmd))
	require.NoError(t, err)

	assert.Equal(t, "http://flag:8545", cfg.Network.RPCURL)
	assert.Equal(t, config.DatabaseDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://gov@db/govsync", cfg.Database.DSN)
	assert.Equal(t, 750*time.Millisecond, cfg.Reconcile.PollInterval)
	assert.True(t, cfg.NonInteractive)
	assert.True(t, cfg.AssumeYes)
}
