package config

import (
	"time"

	"github.com/spf13/pflag"
)

// TrackConfig holds configuration for the track command.
type TrackConfig struct {
	Common
	TxHash       string
	Extrinsic    string
	Out          string
	PGDSN        string
	MaxRetries   int
	RetryBackoff time.Duration
	WaitEvent    string
	WaitFields   []string
	MetricsAddr  string
}

// LoadTrack merges config file, environment variables, and flags into TrackConfig.
func LoadTrack(cfgFile string, flags *pflag.FlagSet) (TrackConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":           "./data/outcomes.jsonl",
		"max-retries":   10,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return TrackConfig{}, err
	}

	return TrackConfig{
		Common:       loadCommon(v),
		TxHash:       v.GetString("tx"),
		Extrinsic:    v.GetString("extrinsic"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		WaitEvent:    v.GetString("wait-event"),
		WaitFields:   getStringSlice(v, "wait-field"),
		MetricsAddr:  v.GetString("metrics-addr"),
	}, nil
}

// WaitConfig holds configuration for the wait command.
type WaitConfig struct {
	Common
	Event       string
	Fields      []string
	Timeout     time.Duration
	MetricsAddr string
}

// LoadWait merges config file, environment variables, and flags into WaitConfig.
func LoadWait(cfgFile string, flags *pflag.FlagSet) (WaitConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return WaitConfig{}, err
	}

	return WaitConfig{
		Common:      loadCommon(v),
		Event:       v.GetString("event"),
		Fields:      getStringSlice(v, "field"),
		Timeout:     v.GetDuration("timeout"),
		MetricsAddr: v.GetString("metrics-addr"),
	}, nil
}

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	Common
	In         string
	Out        string
	Errors     string
	Checkpoint string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":    "./data/typed_events.jsonl",
		"errors": "./data/decode_errors.jsonl",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	return DecodeConfig{
		Common:     loadCommon(v),
		In:         v.GetString("in"),
		Out:        v.GetString("out"),
		Errors:     v.GetString("errors"),
		Checkpoint: v.GetString("checkpoint"),
	}, nil
}

// ErrorsConfig holds configuration for the errors command.
type ErrorsConfig struct {
	Common
	Pallet     int
	Error      int
	PalletName string
}

// LoadErrors merges config file, environment variables, and flags into ErrorsConfig.
// Pallet and Error are -1 when unset.
func LoadErrors(cfgFile string, flags *pflag.FlagSet) (ErrorsConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"pallet": -1,
		"error":  -1,
	})
	if err != nil {
		return ErrorsConfig{}, err
	}

	return ErrorsConfig{
		Common:     loadCommon(v),
		Pallet:     v.GetInt("pallet"),
		Error:      v.GetInt("error"),
		PalletName: v.GetString("pallet-name"),
	}, nil
}
