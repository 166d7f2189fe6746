package config

// Package config provides a reusable loader for chaind configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/koinos-go/chain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a chaind node. It mirrors
// the structure of the YAML files under cmd/chaind/config.
type Config struct {
	Chain struct {
		ID          string `mapstructure:"id" json:"id"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file"`
	} `mapstructure:"chain" json:"chain"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	VM struct {
		ModuleCacheSize int  `mapstructure:"module_cache_size" json:"module_cache_size"`
		MaxMemoryPages  int  `mapstructure:"max_memory_pages" json:"max_memory_pages"`
		MaxCallDepth    int  `mapstructure:"max_call_depth" json:"max_call_depth"`
		OpcodeDebug     bool `mapstructure:"opcode_debug" json:"opcode_debug"`
	} `mapstructure:"vm" json:"vm"`

	Resources struct {
		DiskQuota       uint64 `mapstructure:"disk_quota" json:"disk_quota"`
		NetworkQuota    uint64 `mapstructure:"network_quota" json:"network_quota"`
		ComputeQuota    uint64 `mapstructure:"compute_quota" json:"compute_quota"`
		DiskPerByte     uint64 `mapstructure:"disk_price_per_byte" json:"disk_price_per_byte"`
		NetworkPerByte  uint64 `mapstructure:"network_price_per_byte" json:"network_price_per_byte"`
		ComputePerTick  uint64 `mapstructure:"compute_price_per_tick" json:"compute_price_per_tick"`
	} `mapstructure:"resources" json:"resources"`

	Mempool struct {
		MaxPendingTransactionRequest int `mapstructure:"max_pending_transaction_request" json:"max_pending_transaction_request"`
	} `mapstructure:"mempool" json:"mempool"`

	Indexer struct {
		QueueSize          int `mapstructure:"queue_size" json:"queue_size"`
		StartBatchSize     int `mapstructure:"start_batch_size" json:"start_batch_size"`
		MaxBatchSize       int `mapstructure:"max_batch_size" json:"max_batch_size"`
		RPCTimeoutMS       int `mapstructure:"rpc_timeout_ms" json:"rpc_timeout_ms"`
		MiscRPCTimeoutMS   int `mapstructure:"misc_rpc_timeout_ms" json:"misc_rpc_timeout_ms"`
	} `mapstructure:"indexer" json:"indexer"`

	MQ struct {
		BrokerAddress string `mapstructure:"broker_address" json:"broker_address"`
		BlockStoreAddress string `mapstructure:"block_store_address" json:"block_store_address"`
		RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" json:"rate_limit_per_second"`
	} `mapstructure:"mq" json:"mq"`

	RPC struct {
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"rpc" json:"rpc"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/chaind/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHAIND_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHAIND_ENV", ""))
}
