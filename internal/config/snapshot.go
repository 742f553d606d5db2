package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	Config
	In    string
	PGDSN string
	Pools []string
	At    string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SnapshotConfig{}, err
	}

	return SnapshotConfig{
		Config: shared(v),
		In:     v.GetString("in"),
		PGDSN:  v.GetString("pg-dsn"),
		Pools:  getStringSlice(v, "pools"),
		At:     v.GetString("at"),
	}, nil
}

// ParseTimestamp parses an instant given as unix seconds or RFC3339.
// An empty input yields the zero time.
func ParseTimestamp(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0).UTC(), nil
	}

	return time.Parse(time.RFC3339, input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
