package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"extrinsicScope/internal/chain"
	"extrinsicScope/internal/config"
	"extrinsicScope/internal/events"
	"extrinsicScope/internal/metadata"
	"extrinsicScope/internal/metrics"
	"extrinsicScope/internal/watch"
)

func runWait(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWait(cfgFile, cmd.Flags())
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
	fields, err := watch.ParseFieldFilters(cfg.Fields)
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
	decoder := events.NewDecoder(registry, cfg.DomainPallets...)

	m := metrics.New()
	m.SetMetadataVersion(registry.Version())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metadata == "" {
		refresher := metadata.NewRefresher(chainClient, registry, logger)
		refresher.OnUpdate(m.SetMetadataVersion)
		g.Go(func() error { return refresher.Run(gctx) })
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.MetricsAddr) })
	}

	logger.Info("wait start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("event", cfg.Event),
		zap.Any("fields", fields),
		zap.Strings("domain_pallets", cfg.DomainPallets),
		zap.Duration("timeout", cfg.Timeout),
	)

	var state watch.State
	g.Go(func() error {
		defer cancel()
		waitCtx := gctx
		if cfg.Timeout > 0 {
			var cancelTimeout context.CancelFunc
			waitCtx, cancelTimeout = context.WithTimeout(gctx, cfg.Timeout)
			defer cancelTimeout()
		}

		sub, err := chainClient.SubscribeEvents(waitCtx)
		if err != nil {
			return err
		}
		state, err = watch.WaitFor(waitCtx, sub, decoder, watch.MatchEvent(cfg.Event, fields), logger)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("no matching event within %s", cfg.Timeout)
		}
		if err != nil {
			return err
		}
		m.ObserveWait(state.String())
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if state == watch.Failed {
		logger.Warn("extrinsic failed before a matching event", zap.String("event", cfg.Event))
	}
	logger.Info("wait complete", zap.Stringer("state", state))
	return nil
}
