package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"extrinsicScope/internal/chain"
	"extrinsicScope/internal/config"
	"extrinsicScope/internal/metadata"
)

func main() {
	root := &cobra.Command{
		Use:          "scope",
		Short:        "Extrinsic outcome tracker",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "Resolve the outcome of an extrinsic, optionally waiting for a domain event",
		RunE:  runTrack,
	}

	addCommonFlags(trackCmd.Flags())
	trackCmd.Flags().String("tx", "", "hash of an already submitted extrinsic")
	trackCmd.Flags().String("extrinsic", "", "signed extrinsic (hex) to submit")
	trackCmd.Flags().String("out", "./data/outcomes.jsonl", "output outcomes JSONL")
	trackCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for outcomes")
	trackCmd.Flags().Int("max-retries", 10, "maximum receipt fetch retries")
	trackCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	trackCmd.Flags().String("wait-event", "", "domain event to wait for after a successful dispatch (Name or Pallet::Name)")
	trackCmd.Flags().StringSlice("wait-field", nil, "field filters for the awaited event (comma-separated name=value)")
	trackCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(trackCmd)

	waitCmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until a matching domain event appears",
		RunE:  runWait,
	}

	addCommonFlags(waitCmd.Flags())
	waitCmd.Flags().String("event", "", "domain event name (Name or Pallet::Name), empty matches any")
	waitCmd.Flags().StringSlice("field", nil, "field filters (comma-separated name=value)")
	waitCmd.Flags().Duration("timeout", 0, "give up after this long, 0 waits until the stream closes")
	waitCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(waitCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode receipts JSONL into typed events",
		RunE:  runDecode,
	}

	addCommonFlags(decodeCmd.Flags())
	decodeCmd.Flags().String("in", "", "input receipts JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("checkpoint", "", "resume checkpoint file, outputs are appended when set")

	root.AddCommand(decodeCmd)

	errorsCmd := &cobra.Command{
		Use:   "errors",
		Short: "Look up module errors in the chain metadata",
		RunE:  runErrors,
	}

	addCommonFlags(errorsCmd.Flags())
	errorsCmd.Flags().Int("pallet", -1, "pallet index")
	errorsCmd.Flags().Int("error", -1, "error index")
	errorsCmd.Flags().String("pallet-name", "", "list every error of this pallet")

	root.AddCommand(errorsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "node RPC URL (ws or ipc for subscriptions)")
	flags.String("metadata", "", "metadata JSON file, fetched from the node when empty")
	flags.StringSlice("domain-pallet", []string{"Gear"}, "pallets whose events are domain events")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// loadRegistry reads metadata from the configured file, or from the node when
// no file is set.
func loadRegistry(ctx context.Context, cfg config.Common, client *chain.Client) (*metadata.Registry, error) {
	var md *metadata.Metadata
	var err error
	switch {
	case cfg.Metadata != "":
		md, err = metadata.LoadFile(cfg.Metadata)
	case client != nil:
		md, err = client.Metadata(ctx)
	default:
		return nil, fmt.Errorf("metadata file or rpc url is required")
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return metadata.NewRegistry(md)
}
