package config

import (
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string `json:"projectRoot" yaml:"project_root"`
	DataDir     string `json:"dataDir" yaml:"data_dir"`

	// Execution settings
	Debug          bool `json:"debug" yaml:"debug"`
	NonInteractive bool `json:"nonInteractive" yaml:"non_interactive"`
	JSON           bool `json:"json" yaml:"json"` // Output in JSON format
	AssumeYes      bool `json:"assumeYes" yaml:"assume_yes"`

	// Config source tracking
	ConfigSource string `json:"configSource,omitempty" yaml:"config_source,omitempty"` // path of govsync.toml, empty if none

	// Resolved configurations
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Network   NetworkConfig   `json:"network" yaml:"network"`
	Signer    SignerConfig    `json:"signer" yaml:"signer"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	Events    EventsConfig    `json:"events" yaml:"events"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

// DatabaseDriver selects the gorm dialector
type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

// DatabaseConfig describes where the proposal cache lives
type DatabaseConfig struct {
	Driver DatabaseDriver `json:"driver" yaml:"driver" toml:"driver"`
	// DSN for postgres, file path for sqlite. Empty sqlite path means a shared in-memory database.
	DSN string `json:"dsn" yaml:"dsn" toml:"dsn"`
}

// NetworkConfig is the ledger endpoint plus call timeouts
type NetworkConfig struct {
	RPCURL       string        `json:"rpcUrl" yaml:"rpc_url" toml:"rpc_url"`
	ChainID      uint64        `json:"chainId,omitempty" yaml:"chain_id,omitempty" toml:"chain_id"` // 0 means ask the node
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"read_timeout" toml:"-"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"write_timeout" toml:"-"`
	ReceiptPoll  time.Duration `json:"receiptPoll" yaml:"receipt_poll" toml:"-"`
}

// SignerConfig holds the key used for ledger writes
type SignerConfig struct {
	PrivateKey string `json:"-" yaml:"-" toml:"private_key"`
	Address    string `json:"address,omitempty" yaml:"address,omitempty" toml:"-"` // derived from PrivateKey
}

// ReconcileConfig tunes the polling loop
type ReconcileConfig struct {
	PollInterval time.Duration `json:"pollInterval" yaml:"poll_interval" toml:"-"`
}

// EventsConfig enables state change publication
type EventsConfig struct {
	NatsURL       string `json:"natsUrl,omitempty" yaml:"nats_url,omitempty" toml:"nats_url"`
	SubjectPrefix string `json:"subjectPrefix" yaml:"subject_prefix" toml:"subject_prefix"`
}

// MetricsConfig enables the prometheus endpoint
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr"`
}
