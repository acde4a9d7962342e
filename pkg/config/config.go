package config

import (
	"time"
)

// NodeConfig is the full configuration for an ordinal node.
type NodeConfig struct {
	Moniker   string `mapstructure:"moniker"`
	ChainID   string `mapstructure:"chain_id"`
	HomeDir   string `mapstructure:"home_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	P2P       P2PConfig       `mapstructure:"p2p"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// P2PConfig configures the libp2p gossip transport.
type P2PConfig struct {
	ListenAddr      string   `mapstructure:"listen_addr"`
	MaxConnInbound  uint16   `mapstructure:"max_conn_inbound"`
	MaxConnOutbound uint16   `mapstructure:"max_conn_outbound"`
	MaxPeers        uint16   `mapstructure:"max_peers"`
	PrivateKeyFile  string   `mapstructure:"private_key_file"`
	BootstrapPeers  []string `mapstructure:"bootstrap_peers"`
}

// RPCConfig configures the node's HTTP listener. The runtime reads Addr and
// Port to serve /metrics and /health; there is no JSON-RPC query server.
type RPCConfig struct {
	Addr               string `mapstructure:"addr"`
	Port               uint16 `mapstructure:"port"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
}

// ConsensusConfig configures the BFT core's timeouts and the validator
// manager's bounds.
type ConsensusConfig struct {
	TimeoutProposeMs   int64 `mapstructure:"timeout_propose_ms"`
	TimeoutPrevoteMs   int64 `mapstructure:"timeout_prevote_ms"`
	TimeoutPrecommitMs int64 `mapstructure:"timeout_precommit_ms"`
	TimeoutIncrementMs int64 `mapstructure:"timeout_increment_ms"`

	MinStake      uint64 `mapstructure:"min_stake"`
	MaxValidators uint32 `mapstructure:"max_validators"`
	EpochLength   uint64 `mapstructure:"epoch_length"`
}

// ValidatorConfig configures this node's own validator participation.
type ValidatorConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
	Stake          uint64 `mapstructure:"stake"`
	CommissionBps  uint32 `mapstructure:"commission_bps"`
}

// StorageConfig configures the tiered storage engine.
type StorageConfig struct {
	HotCapacity int    `mapstructure:"hot_capacity"`
	WarmDir     string `mapstructure:"warm_dir"`
	ColdDir     string `mapstructure:"cold_dir"`
}

// DefaultConfig returns production-shaped defaults (3 s propose timeout,
// 500 ms increment, 100-validator cap).
func DefaultConfig() *NodeConfig {
	return &NodeConfig{
		Moniker:   "ordinal-node",
		ChainID:   "ordinal-devnet-1",
		HomeDir:   "$HOME/.ordinal",
		LogLevel:  "info",
		LogFormat: "json",

		P2P: P2PConfig{
			ListenAddr:      "/ip4/0.0.0.0/tcp/26656",
			MaxConnInbound:  100,
			MaxConnOutbound: 32,
			MaxPeers:        200,
			PrivateKeyFile:  "config/node_key.json",
			BootstrapPeers:  []string{},
		},

		RPC: RPCConfig{
			Addr:               "0.0.0.0",
			Port:               26657,
			MaxBodyBytes:       1_000_000,
			MaxOpenConnections: 900,
		},

		Consensus: ConsensusConfig{
			TimeoutProposeMs:   3000,
			TimeoutPrevoteMs:   1000,
			TimeoutPrecommitMs: 1000,
			TimeoutIncrementMs: 500,

			MinStake:      10_000_000,
			MaxValidators: 100,
			EpochLength:   10_000,
		},

		Validator: ValidatorConfig{
			Enabled:        false,
			PrivateKeyFile: "config/validator_key.json",
			Stake:          1_000_000_000,
			CommissionBps:  1000,
		},

		Storage: StorageConfig{
			HotCapacity: 10_000,
			WarmDir:     "warm",
			ColdDir:     "cold",
		},
	}
}

// ConsensusTimeoutDuration converts a millisecond field to a time.Duration,
// for callers that need a Duration rather than the raw config int64.
func ConsensusTimeoutDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
