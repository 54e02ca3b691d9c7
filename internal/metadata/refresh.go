package metadata

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"
)

// Source provides metadata and runtime upgrade notifications from a node.
type Source interface {
	Metadata(ctx context.Context) (*Metadata, error)
	SubscribeRuntimeVersion(ctx context.Context, ch chan<- RuntimeVersion) (ethereum.Subscription, error)
}

// Refresher keeps a Registry in sync with the node across runtime upgrades.
type Refresher struct {
	source   Source
	registry *Registry
	logger   *zap.Logger
	onUpdate func(version uint32)
}

func NewRefresher(source Source, registry *Registry, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{source: source, registry: registry, logger: logger}
}

// OnUpdate registers a callback invoked after each registry update.
func (r *Refresher) OnUpdate(fn func(version uint32)) {
	r.onUpdate = fn
}

// Run follows runtime version changes until ctx is done or the subscription ends.
func (r *Refresher) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("metadata source is nil")
	}
	if r.registry == nil {
		return fmt.Errorf("registry is nil")
	}

	versions := make(chan RuntimeVersion, 4)
	sub, err := r.source.SubscribeRuntimeVersion(ctx, versions)
	if err != nil {
		return fmt.Errorf("subscribe runtime version: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				return nil
			}
			return fmt.Errorf("runtime version subscription: %w", err)
		case version := <-versions:
			current := r.registry.Version()
			if version.SpecVersion == current {
				continue
			}
			r.logger.Info("runtime upgrade detected",
				zap.String("spec_name", version.SpecName),
				zap.Uint32("from", current),
				zap.Uint32("to", version.SpecVersion),
			)
			if err := r.refresh(ctx); err != nil {
				r.logger.Warn("metadata refresh failed", zap.Error(err), zap.Uint32("spec_version", version.SpecVersion))
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	md, err := r.source.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	if err := r.registry.Update(md); err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	r.logger.Info("metadata updated", zap.Uint32("spec_version", md.SpecVersion), zap.Int("pallets", len(md.Pallets)))
	if r.onUpdate != nil {
		r.onUpdate(md.SpecVersion)
	}
	return nil
}
