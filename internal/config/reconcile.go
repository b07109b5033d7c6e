package config

import (
	"github.com/spf13/pflag"
)

// ReconcileConfig holds configuration for the reconcile command.
type ReconcileConfig struct {
	In string
	// PGDSN selects the Postgres entity store; empty keeps entities in memory
	// and persists them to Snapshot.
	PGDSN           string
	Snapshot        string
	Network         string
	Numeraire       string
	NumeraireSymbol string
	CheckpointEvery int
	MetricsAddr     string
	LogLevel        string
}

// LoadReconcile merges config file, environment variables, and flags into ReconcileConfig.
func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"snapshot":         "./data/entities.jsonl",
		"network":          "mainnet",
		"numeraire-symbol": "OCEAN",
		"checkpoint-every": 1000,
		"log-level":        "info",
	})
	if err != nil {
		return ReconcileConfig{}, err
	}

	return ReconcileConfig{
		In:              v.GetString("in"),
		PGDSN:           v.GetString("pg-dsn"),
		Snapshot:        v.GetString("snapshot"),
		Network:         v.GetString("network"),
		Numeraire:       v.GetString("numeraire"),
		NumeraireSymbol: v.GetString("numeraire-symbol"),
		CheckpointEvery: v.GetInt("checkpoint-every"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}, nil
}
