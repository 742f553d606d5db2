package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the settings shared by every command.
type Config struct {
	RPCURL         string
	Contract       string
	PrivateKey     string
	ConfirmTimeout time.Duration
	PriceFeed      string
	PriceMaxAge    time.Duration
	Tokens         []string
	BalanceTTL     time.Duration
	LogLevel       string
	Log            LogFile
}

// LogFile configures the optional rotated log file.
type LogFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return shared(v), nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("THALER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("confirm-timeout", 2*time.Minute)
	v.SetDefault("price-max-age", time.Hour)
	v.SetDefault("balance-ttl", 10*time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-max-size", 50)
	v.SetDefault("log-max-backups", 5)
	v.SetDefault("log-max-age", 14)

	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("state-name", "savings-indexer")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func shared(v *viper.Viper) Config {
	return Config{
		RPCURL:         v.GetString("rpc"),
		Contract:       v.GetString("contract"),
		PrivateKey:     v.GetString("private-key"),
		ConfirmTimeout: v.GetDuration("confirm-timeout"),
		PriceFeed:      v.GetString("price-feed"),
		PriceMaxAge:    v.GetDuration("price-max-age"),
		Tokens:         getStringSlice(v, "tokens"),
		BalanceTTL:     v.GetDuration("balance-ttl"),
		LogLevel:       v.GetString("log-level"),
		Log: LogFile{
			Path:       v.GetString("log-file"),
			MaxSizeMB:  v.GetInt("log-max-size"),
			MaxBackups: v.GetInt("log-max-backups"),
			MaxAgeDays: v.GetInt("log-max-age"),
		},
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ParseAddresses converts configured hex addresses into common.Address,
// skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range cleanStrings(inputs) {
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
