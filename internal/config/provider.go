package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/daoservice/govsync/internal/domain/config"
)

// RuntimeConfig is re-exported so callers only import one config package
type RuntimeConfig = config.RuntimeConfig

const (
	// ConfigFileName is looked up in the project root unless --config is given
	ConfigFileName = "govsync.toml"
	// DataDirName holds the default sqlite database
	DataDirName = ".govsync"

	DefaultPollInterval  = 5 * time.Second
	DefaultReadTimeout   = 10 * time.Second
	DefaultWriteTimeout  = 2 * time.Minute
	DefaultReceiptPoll   = 2 * time.Second
	DefaultSubjectPrefix = "govsync.proposals"
)

// flagKeys maps CLI flag names onto nested viper keys. Flags not listed bind
// to their own name with dashes replaced by underscores.
var flagKeys = map[string]string{
	"rpc-url":       "network.rpc_url",
	"chain-id":      "network.chain_id",
	"db-driver":     "database.driver",
	"db-dsn":        "database.dsn",
	"poll-interval": "reconcile.poll_interval",
	"nats-url":      "events.nats_url",
	"metrics-addr":  "metrics.addr",
}

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		projectRoot = wd
	}

	loadEnvFiles(projectRoot)

	configPath := v.GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(projectRoot, ConfigFileName)
	}
	source, err := mergeConfigFile(v, configPath, explicit)
	if err != nil {
		return nil, err
	}

	cfg := &RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        filepath.Join(projectRoot, DataDirName),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		AssumeYes:      v.GetBool("yes"),
		ConfigSource:   source,
		Database: config.DatabaseConfig{
			Driver: config.DatabaseDriver(strings.ToLower(v.GetString("database.driver"))),
			DSN:    os.ExpandEnv(v.GetString("database.dsn")),
		},
		Network: config.NetworkConfig{
			RPCURL:       os.ExpandEnv(v.GetString("network.rpc_url")),
			ChainID:      v.GetUint64("network.chain_id"),
			ReadTimeout:  v.GetDuration("network.read_timeout"),
			WriteTimeout: v.GetDuration("network.write_timeout"),
			ReceiptPoll:  v.GetDuration("network.receipt_poll"),
		},
		Signer: config.SignerConfig{
			PrivateKey: os.ExpandEnv(v.GetString("signer.private_key")),
		},
		Reconcile: config.ReconcileConfig{
			PollInterval: v.GetDuration("reconcile.poll_interval"),
		},
		Events: config.EventsConfig{
			NatsURL:       os.ExpandEnv(v.GetString("events.nats_url")),
			SubjectPrefix: v.GetString("events.subject_prefix"),
		},
		Metrics: config.MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	switch cfg.Database.Driver {
	case config.DatabaseDriverSQLite:
		if cfg.Database.DSN == "" {
			cfg.Database.DSN = filepath.Join(cfg.DataDir, "govsync.sqlite")
		}
	case config.DatabaseDriverPostgres:
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q (sqlite or postgres)", cfg.Database.Driver)
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"reconcile.poll_interval", cfg.Reconcile.PollInterval},
		{"network.read_timeout", cfg.Network.ReadTimeout},
		{"network.write_timeout", cfg.Network.WriteTimeout},
		{"network.receipt_poll", cfg.Network.ReceiptPoll},
	} {
		if d.val <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.key, d.val)
		}
	}

	if cfg.Signer.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Signer.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid signer.private_key: %w", err)
		}
		cfg.Signer.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	}

	return cfg, nil
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	// Set up environment variables
	v.SetEnvPrefix("GOVSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Set defaults
	v.SetDefault("project_root", projectRoot)
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("database.driver", string(config.DatabaseDriverSQLite))
	v.SetDefault("database.dsn", "")
	v.SetDefault("network.rpc_url", "")
	v.SetDefault("network.chain_id", 0)
	v.SetDefault("network.read_timeout", DefaultReadTimeout)
	v.SetDefault("network.write_timeout", DefaultWriteTimeout)
	v.SetDefault("network.receipt_poll", DefaultReceiptPoll)
	v.SetDefault("signer.private_key", "")
	v.SetDefault("reconcile.poll_interval", DefaultPollInterval)
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", DefaultSubjectPrefix)
	v.SetDefault("metrics.addr", "")

	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if err := v.BindPFlag(key, f); err != nil {
				panic(err)
			}
		})
	}

	return v
}
