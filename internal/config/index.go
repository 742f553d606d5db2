package config

import (
	"time"

	"github.com/spf13/pflag"
)

// IndexConfig holds configuration for the index command.
type IndexConfig struct {
	Config
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	PGDSN             string
	StateName         string
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return IndexConfig{}, err
	}

	return IndexConfig{
		Config:            shared(v),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PGDSN:             v.GetString("pg-dsn"),
		StateName:         v.GetString("state-name"),
	}, nil
}
