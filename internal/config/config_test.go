package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "thaler.yaml")
	content := "rpc: http://file:8545\ncontract: \"0x1111111111111111111111111111111111111111\"\ntokens: \"0xaa, 0xbb ,\"\nbalance-ttl: 30s\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("THALER_PRIVATE_KEY", "0xabc")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--rpc", "http://flag:8545"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://flag:8545" {
		t.Fatalf("flag should win, got %s", cfg.RPCURL)
	}
	if cfg.PrivateKey != "0xabc" {
		t.Fatalf("env not applied: %q", cfg.PrivateKey)
	}
	if !reflect.DeepEqual(cfg.Tokens, []string{"0xaa", "0xbb"}) {
		t.Fatalf("tokens %v", cfg.Tokens)
	}
	if cfg.BalanceTTL != 30*time.Second || cfg.ConfirmTimeout != 2*time.Minute {
		t.Fatalf("durations %s %s", cfg.BalanceTTL, cfg.ConfirmTimeout)
	}
	if cfg.Log.MaxSizeMB != 50 || cfg.LogLevel != "info" {
		t.Fatalf("log defaults %+v %s", cfg.Log, cfg.LogLevel)
	}
}

func TestLoadIndexDefaults(t *testing.T) {
	cfg, err := LoadIndex(filepath.Join("testdata", "missing.yaml"), nil)
	if err == nil {
		t.Fatalf("expected error for explicit missing config file, got %+v", cfg)
	}

	cfg, err = LoadIndex("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 2000 || !cfg.CheckpointEnabled || cfg.StateName != "savings-indexer" || cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("defaults %+v", cfg)
	}
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x3333333333333333333333333333333333333333 ", "", "0x4444444444444444444444444444444444444444"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0].Hex() != "0x3333333333333333333333333333333333333333" {
		t.Fatalf("addresses %v", got)
	}
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("1700000000")
	if err != nil || got.Unix() != 1_700_000_000 {
		t.Fatalf("unix: %v %v", got, err)
	}
	got, err = ParseTimestamp("2024-01-02T03:04:05Z")
	if err != nil || got.Unix() != 1_704_164_645 {
		t.Fatalf("rfc3339: %v %v", got, err)
	}
	if got, err := ParseTimestamp(" "); err != nil || !got.IsZero() {
		t.Fatalf("empty: %v %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
}
