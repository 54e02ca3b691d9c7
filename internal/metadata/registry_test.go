package metadata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"
)

func loadTestMetadata(t *testing.T) *Metadata {
	t.Helper()
	md, err := LoadFile("testdata/metadata.json")
	require.NoError(t, err)
	return md
}

func TestRegistryLookupError(t *testing.T) {
	reg, err := NewRegistry(loadTestMetadata(t))
	require.NoError(t, err)
	require.Equal(t, uint32(140), reg.Version())

	details, ok := reg.LookupError(3, 2)
	require.True(t, ok)
	require.Equal(t, ErrorDetails{
		PalletIndex: 3,
		ErrorIndex:  2,
		Pallet:      "Balances",
		Error:       "InsufficientBalance",
		Description: []string{"Balance too low to send value"},
	}, details)

	_, ok = reg.LookupError(3, 1)
	require.False(t, ok)
	_, ok = reg.LookupError(42, 0)
	require.False(t, ok)
}

func TestRegistryEventVariant(t *testing.T) {
	reg, err := NewRegistry(loadTestMetadata(t))
	require.NoError(t, err)

	ev, ok := reg.EventVariant(0, 1)
	require.True(t, ok)
	require.Equal(t, "System", ev.Pallet)
	require.Equal(t, "ExtrinsicFailed", ev.Variant)
	require.Len(t, ev.Fields, 2)
	require.Equal(t, "DispatchError", ev.Fields[0].Type)

	_, ok = reg.EventVariant(0, 9)
	require.False(t, ok)
}

func TestRegistryPalletErrorsOrdered(t *testing.T) {
	reg, err := NewRegistry(loadTestMetadata(t))
	require.NoError(t, err)

	list, ok := reg.PalletErrors("Gear")
	require.True(t, ok)
	require.Len(t, list, 2)
	require.Equal(t, "MessageNotFound", list[0].Error)
	require.Equal(t, "ProgramNotFound", list[1].Error)

	_, ok = reg.PalletErrors("Nope")
	require.False(t, ok)
}

func TestRegistryUpdateSwapsVersion(t *testing.T) {
	reg, err := NewRegistry(loadTestMetadata(t))
	require.NoError(t, err)

	next := &Metadata{
		SpecVersion: 141,
		Pallets: []Pallet{{
			Index:  3,
			Name:   "Balances",
			Errors: []ErrorVariant{{Index: 2, Name: "FundsUnavailable", Docs: []string{"renamed"}}},
		}},
	}
	require.NoError(t, reg.Update(next))
	require.Equal(t, uint32(141), reg.Version())

	details, ok := reg.LookupError(3, 2)
	require.True(t, ok)
	require.Equal(t, "FundsUnavailable", details.Error)

	_, ok = reg.EventVariant(0, 0)
	require.False(t, ok)
}

func TestZeroRegistryKnowsNothingUntilUpdated(t *testing.T) {
	var reg Registry
	require.Zero(t, reg.Version())
	_, ok := reg.LookupError(3, 2)
	require.False(t, ok)
	_, ok = reg.EventVariant(0, 0)
	require.False(t, ok)
	_, ok = reg.PalletErrors("Balances")
	require.False(t, ok)

	require.NoError(t, reg.Update(loadTestMetadata(t)))
	require.Equal(t, uint32(140), reg.Version())
	_, ok = reg.LookupError(3, 2)
	require.True(t, ok)
}

func TestRegistryConcurrentReaders(t *testing.T) {
	reg, err := NewRegistry(loadTestMetadata(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				reg.LookupError(3, 2)
				reg.EventVariant(104, 1)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, reg.Update(loadTestMetadata(t)))
	}
	wg.Wait()
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`{"specVersion":1,"pallets":[{"index":1,"name":"A"},{"index":1,"name":"B"}]}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"specVersion":1,"pallets":[{"index":1,"name":"A","errors":[{"index":0,"name":"X"},{"index":0,"name":"Y"}]}]}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"specVersion":1,"pallets":[{"index":1,"name":""}]}`))
	require.Error(t, err)
}

type fakeSource struct {
	versions []RuntimeVersion
	md       *Metadata
	fetches  int
	mu       sync.Mutex
}

func (f *fakeSource) Metadata(context.Context) (*Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.md, nil
}

func (f *fakeSource) SubscribeRuntimeVersion(_ context.Context, ch chan<- RuntimeVersion) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		for _, v := range f.versions {
			select {
			case ch <- v:
			case <-quit:
				return nil
			}
		}
		<-quit
		return nil
	}), nil
}

func TestRefresherUpdatesOnNewSpecVersion(t *testing.T) {
	reg, err := NewRegistry(loadTestMetadata(t))
	require.NoError(t, err)

	upgraded := loadTestMetadata(t)
	upgraded.SpecVersion = 150
	source := &fakeSource{
		versions: []RuntimeVersion{{SpecName: "gear", SpecVersion: 140}, {SpecName: "gear", SpecVersion: 150}},
		md:       upgraded,
	}

	updated := make(chan uint32, 1)
	refresher := NewRefresher(source, reg, nil)
	refresher.OnUpdate(func(v uint32) { updated <- v })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- refresher.Run(ctx) }()

	select {
	case v := <-updated:
		require.Equal(t, uint32(150), v)
	case <-time.After(2 * time.Second):
		t.Fatal("registry was not refreshed")
	}
	require.Equal(t, uint32(150), reg.Version())

	cancel()
	require.NoError(t, <-done)

	source.mu.Lock()
	defer source.mu.Unlock()
	require.Equal(t, 1, source.fetches)
}
