package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"extrinsicScope/internal/chain"
	"extrinsicScope/internal/config"
	"extrinsicScope/internal/events"
	"extrinsicScope/internal/metadata"
	"extrinsicScope/internal/metrics"
	"extrinsicScope/internal/outcome"
	"extrinsicScope/internal/storage"
	"extrinsicScope/internal/storage/postgres"
	"extrinsicScope/internal/tracker"
	"extrinsicScope/internal/watch"
)

func runTrack(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTrack(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	trackCfg, err := buildTrackConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	registry, err := loadRegistry(ctx, cfg.Common, chainClient)
	if err != nil {
		return err
	}

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	m := metrics.New()
	m.SetMetadataVersion(registry.Version())

	run := tracker.New(trackCfg, tracker.Deps{
		Chain: chainClient,
		Subscribe: func(ctx context.Context) (watch.Subscription, error) {
			return chainClient.SubscribeEvents(ctx)
		},
		Decoder:  events.NewDecoder(registry, cfg.DomainPallets...),
		Resolver: outcome.NewResolver(registry, m, logger),
		Versions: registry,
		Storage:  sinks,
		Recorder: m,
	}, logger)

	logger.Info("track start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("tx", cfg.TxHash),
		zap.Bool("submit", len(trackCfg.Extrinsic) > 0),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("wait_event", cfg.WaitEvent),
		zap.Uint32("spec_version", registry.Version()),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if trackCfg.Waiting() && cfg.Metadata == "" {
		refresher := metadata.NewRefresher(chainClient, registry, logger)
		refresher.OnUpdate(m.SetMetadataVersion)
		g.Go(func() error { return refresher.Run(gctx) })
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.MetricsAddr) })
	}

	var result tracker.Result
	g.Go(func() error {
		defer cancel()
		var err error
		result, err = run.Run(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("track failed", zap.String("tx_hash", result.TxHash.Hex()), zap.Error(err))
		return err
	}

	logger.Info("track complete",
		zap.String("tx_hash", result.TxHash.Hex()),
		zap.String("status", result.Outcome.Status),
		zap.Uint64("ref_time", result.Outcome.DispatchInfo.Weight.RefTime),
		zap.Stringer("wait_state", result.WaitState),
	)
	return nil
}

func buildTrackConfig(cfg config.TrackConfig) (tracker.Config, error) {
	out := tracker.Config{
		WaitEvent:    cfg.WaitEvent,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}

	switch {
	case cfg.Extrinsic != "" && cfg.TxHash != "":
		return tracker.Config{}, fmt.Errorf("tx and extrinsic are mutually exclusive")
	case cfg.Extrinsic != "":
		data, err := hexutil.Decode(cfg.Extrinsic)
		if err != nil {
			return tracker.Config{}, fmt.Errorf("invalid extrinsic: %w", err)
		}
		out.Extrinsic = data
	case cfg.TxHash != "":
		hash, err := parseHash(cfg.TxHash)
		if err != nil {
			return tracker.Config{}, err
		}
		out.TxHash = hash
	default:
		return tracker.Config{}, fmt.Errorf("tx or extrinsic is required")
	}

	fields, err := watch.ParseFieldFilters(cfg.WaitFields)
	if err != nil {
		return tracker.Config{}, err
	}
	if len(fields) > 0 {
		out.WaitFields = fields
	}
	return out, nil
}

func parseHash(input string) (common.Hash, error) {
	data, err := hexutil.Decode(input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid tx hash %q: %w", input, err)
	}
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid tx hash %q: expected %d bytes", input, common.HashLength)
	}
	return common.BytesToHash(data), nil
}
