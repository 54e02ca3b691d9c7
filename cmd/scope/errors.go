package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"extrinsicScope/internal/chain"
	"extrinsicScope/internal/config"
	"extrinsicScope/internal/metadata"
)

func runErrors(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadErrors(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.Metadata == "" && cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
	}

	registry, err := loadRegistry(ctx, cfg.Common, chainClient)
	if err != nil {
		return err
	}

	details, err := lookupErrors(registry, cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, d := range details {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

func lookupErrors(registry *metadata.Registry, cfg config.ErrorsConfig) ([]metadata.ErrorDetails, error) {
	if cfg.PalletName != "" {
		details, ok := registry.PalletErrors(cfg.PalletName)
		if !ok {
			return nil, fmt.Errorf("unknown pallet %q", cfg.PalletName)
		}
		return details, nil
	}

	if cfg.Pallet < 0 || cfg.Pallet > 255 || cfg.Error < 0 || cfg.Error > 255 {
		return nil, fmt.Errorf("pallet and error indices (0-255) or pallet-name are required")
	}
	details, ok := registry.LookupError(uint8(cfg.Pallet), uint8(cfg.Error))
	if !ok {
		return nil, fmt.Errorf("no error %d in pallet %d (spec version %d)", cfg.Error, cfg.Pallet, registry.Version())
	}
	return []metadata.ErrorDetails{details}, nil
}
