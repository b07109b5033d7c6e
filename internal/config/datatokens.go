package config

import (
	"github.com/spf13/pflag"
)

// DatatokensConfig holds configuration for the datatokens command.
type DatatokensConfig struct {
	RPCURL    string
	PGDSN     string
	Snapshot  string
	Addresses []string
	LogLevel  string
}

// LoadDatatokens merges config file, environment variables, and flags into DatatokensConfig.
func LoadDatatokens(cfgFile string, flags *pflag.FlagSet) (DatatokensConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"snapshot":  "./data/entities.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return DatatokensConfig{}, err
	}

	return DatatokensConfig{
		RPCURL:    v.GetString("rpc"),
		PGDSN:     v.GetString("pg-dsn"),
		Snapshot:  v.GetString("snapshot"),
		Addresses: getStringSlice(v, "address"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
