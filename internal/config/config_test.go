package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunDefaultsAndFile(t *testing.T) {
	path := writeConfig(t, "rpc: http://localhost:8545\naddress: \"0xa, 0xb,\"\nretry-backoff: 2s\n")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc mismatch: %s", cfg.RPCURL)
	}
	if !reflect.DeepEqual(cfg.Addresses, []string{"0xa", "0xb"}) {
		t.Fatalf("addresses mismatch: %v", cfg.Addresses)
	}
	if cfg.BatchSize != 2000 || !cfg.CheckpointEnabled || !cfg.WithTxMeta {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Fatalf("retry backoff mismatch: %s", cfg.RetryBackoff)
	}
}

func TestLoadReconcileLayers(t *testing.T) {
	path := writeConfig(t, "network: goerli\nnumeraire-symbol: mOCEAN\ncheckpoint-every: 10\n")
	t.Setenv("INDEXER_METRICS_ADDR", ":9100")

	flags := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.Int("checkpoint-every", 1000, "")
	if err := flags.Parse([]string{"--in", "events.jsonl", "--checkpoint-every", "25"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadReconcile(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.In != "events.jsonl" || cfg.CheckpointEvery != 25 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Network != "goerli" || cfg.NumeraireSymbol != "mOCEAN" {
		t.Fatalf("config file not applied: %+v", cfg)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Fatalf("env not applied: %q", cfg.MetricsAddr)
	}
	if cfg.Snapshot != "./data/entities.jsonl" || cfg.PGDSN != "" {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := LoadDecode(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadDatatokensAddresses(t *testing.T) {
	flags := pflag.NewFlagSet("datatokens", pflag.ContinueOnError)
	flags.StringSlice("address", nil, "")
	if err := flags.Parse([]string{"--address", "0x1,0x2", "--address", "0x3"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadDatatokens(writeConfig(t, "log-level: debug\n"), flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg.Addresses, []string{"0x1", "0x2", "0x3"}) {
		t.Fatalf("addresses mismatch: %v", cfg.Addresses)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level mismatch: %s", cfg.LogLevel)
	}
}
