// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON file and environment
// variables, applied in that order.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port"`

	// DatabaseDSN selects the PostgreSQL store when set; the file store is used otherwise.
	DatabaseDSN string `json:"database_dsn"`

	// DataDir is where the file store keeps account.json and purchase.json.
	DataDir string `json:"data_dir"`

	// Protection is the credential strategy: "hash" or "cipher".
	Protection string `json:"protection"`

	// SecretKey keys the cipher strategy.
	SecretKey string `json:"secret_key"`

	// IVLength is the cipher nonce length in bytes.
	IVLength int `json:"iv_length"`

	// RepoPath is the git worktree containing DataDir.
	RepoPath string `json:"repo_path"`

	// Remote is the git remote to push to; empty disables pushing.
	Remote string `json:"remote"`

	// Branch is the remote branch receiving the commits.
	Branch string `json:"branch"`

	// DisableRelay turns off git replication entirely.
	DisableRelay bool `json:"disable_relay"`

	// S3Bucket enables snapshot uploads to object storage when set.
	S3Bucket string `json:"s3_bucket"`
	// S3Prefix is the key prefix of uploaded snapshots.
	S3Prefix string `json:"s3_prefix"`
	// S3Region, S3Endpoint, S3AccessKey and S3SecretKey configure the client.
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`

	// StoreTimeout bounds a single store operation.
	StoreTimeout Duration `json:"store_timeout"`

	// RelayTimeout bounds a single publish to the remote.
	RelayTimeout Duration `json:"relay_timeout"`

	// HistoryRetention is how long PostgreSQL snapshot history is kept.
	HistoryRetention Duration `json:"history_retention"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Duration is a time.Duration that reads "5s"-style strings from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// defaults returns Options with every default applied.
func defaults() *Options {
	return &Options{
		Port:             "localhost:3000",
		DataDir:          "data",
		Protection:       "hash",
		IVLength:         16,
		RepoPath:         ".",
		Remote:           "origin",
		Branch:           "main",
		S3Prefix:         "enrollkeeper",
		S3Region:         "us-east-1",
		StoreTimeout:     Duration{5 * time.Second},
		RelayTimeout:     Duration{30 * time.Second},
		HistoryRetention: Duration{30 * 24 * time.Hour},
		LogLevel:         "info",
		Config:           "config.json",
	}
}

// Parse parses the process command line and environment. It exits the
// process on invalid input, like flag.ExitOnError.
func Parse() *Options {
	options, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return options
}

// ParseArgs builds Options from args and getenv. Precedence, lowest first:
// defaults, flags, the JSON config file, environment variables.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	options := defaults()

	fs := flag.NewFlagSet("enrollkeeper", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", options.DatabaseDSN, "db address")
	fs.StringVar(&options.DataDir, "data", options.DataDir, "data directory of the file store")
	fs.StringVar(&options.Protection, "protection", options.Protection, "credential strategy: hash or cipher")
	fs.StringVar(&options.SecretKey, "key", options.SecretKey, "secret key of the cipher strategy")
	fs.IntVar(&options.IVLength, "iv", options.IVLength, "cipher nonce length in bytes")
	fs.StringVar(&options.RepoPath, "repo", options.RepoPath, "git worktree containing the data directory")
	fs.StringVar(&options.Remote, "remote", options.Remote, "git remote to push to (empty: commit only)")
	fs.StringVar(&options.Branch, "branch", options.Branch, "git branch to push to")
	fs.BoolVar(&options.DisableRelay, "no-relay", options.DisableRelay, "disable git replication")
	fs.StringVar(&options.S3Bucket, "s3-bucket", options.S3Bucket, "S3 bucket for snapshots (empty: disabled)")
	fs.StringVar(&options.S3Prefix, "s3-prefix", options.S3Prefix, "S3 key prefix")
	fs.StringVar(&options.S3Region, "s3-region", options.S3Region, "S3 region")
	fs.StringVar(&options.S3Endpoint, "s3-endpoint", options.S3Endpoint, "S3 base endpoint")
	fs.Var(&options.StoreTimeout, "store-timeout", "timeout of a store operation")
	fs.Var(&options.RelayTimeout, "relay-timeout", "timeout of a git publish")
	fs.Var(&options.HistoryRetention, "history-retention", "retention of PostgreSQL snapshot history")
	fs.StringVar(&options.LogLevel, "l", options.LogLevel, "log level")
	fs.StringVar(&options.Config, "config", options.Config, "path to config file")
	fs.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := applyEnv(options, getenv); err != nil {
		return nil, err
	}
	return options, nil
}

func applyEnv(options *Options, getenv func(string) string) error {
	strs := map[string]*string{
		"SERVER_ADDRESS": &options.Port,
		"DATABASE_DSN":   &options.DatabaseDSN,
		"DATA_DIR":       &options.DataDir,
		"PROTECTION":     &options.Protection,
		"SECRET_KEY":     &options.SecretKey,
		"REPO_PATH":      &options.RepoPath,
		"GIT_REMOTE":     &options.Remote,
		"GIT_BRANCH":     &options.Branch,
		"LOG_LEVEL":      &options.LogLevel,
		"S3_BUCKET":      &options.S3Bucket,
		"S3_PREFIX":      &options.S3Prefix,
		"S3_REGION":      &options.S3Region,
		"S3_ENDPOINT":    &options.S3Endpoint,
		"S3_ACCESS_KEY":  &options.S3AccessKey,
		"S3_SECRET_KEY":  &options.S3SecretKey,
	}
	for name, dst := range strs {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	if v := getenv("IV_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IV_LENGTH: %w", err)
		}
		options.IVLength = n
	}
	if v := getenv("DISABLE_RELAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DISABLE_RELAY: %w", err)
		}
		options.DisableRelay = b
	}

	durations := map[string]*Duration{
		"STORE_TIMEOUT":     &options.StoreTimeout,
		"RELAY_TIMEOUT":     &options.RelayTimeout,
		"HISTORY_RETENTION": &options.HistoryRetention,
	}
	for name, dst := range durations {
		if v := getenv(name); v != "" {
			if err := dst.Set(v); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}
