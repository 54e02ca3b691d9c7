package chain

import (
	"context"
	"encoding/json"
	"fmt"

	gsrpctypes "github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"

	"extrinsicScope/internal/metadata"
	"extrinsicScope/internal/model"
)

// DefaultReceiptCacheSize bounds the number of receipts kept in memory.
const DefaultReceiptCacheSize = 1024

// ErrReceiptNotFound is returned while the extrinsic is not yet included.
var ErrReceiptNotFound = ethereum.NotFound

// Client wraps a go-ethereum RPC client speaking the node's JSON-RPC API.
type Client struct {
	rpcClient *rpc.Client
	receipts  *lru.Cache[common.Hash, model.Receipt]
}

// NewClient dials the node. Subscriptions need a websocket or IPC endpoint.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	client, err := NewClientWithRPC(rpcClient, DefaultReceiptCacheSize)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithRPC wraps an already connected RPC client.
func NewClientWithRPC(rpcClient *rpc.Client, cacheSize int) (*Client, error) {
	if rpcClient == nil {
		return nil, fmt.Errorf("rpc client is nil")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultReceiptCacheSize
	}
	receipts, err := lru.New[common.Hash, model.Receipt](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("receipt cache: %w", err)
	}
	return &Client{rpcClient: rpcClient, receipts: receipts}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// FetchReceipt returns the receipt of an included extrinsic, using an LRU
// cache. Receipts of included extrinsics never change.
func (c *Client) FetchReceipt(ctx context.Context, txHash common.Hash) (model.Receipt, error) {
	if receipt, ok := c.receipts.Get(txHash); ok {
		return receipt, nil
	}

	var receipt *model.Receipt
	if err := c.rpcClient.CallContext(ctx, &receipt, "gear_txReceipt", txHash); err != nil {
		return model.Receipt{}, err
	}
	if receipt == nil {
		return model.Receipt{}, ErrReceiptNotFound
	}
	if receipt.TxHash == (common.Hash{}) {
		receipt.TxHash = txHash
	}
	c.receipts.Add(txHash, *receipt)
	return *receipt, nil
}

// SubmitExtrinsic sends a signed extrinsic and returns its hash.
func (c *Client) SubmitExtrinsic(ctx context.Context, extrinsic hexutil.Bytes) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpcClient.CallContext(ctx, &hash, "author_submitExtrinsic", extrinsic); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Metadata fetches and validates the node's current metadata.
func (c *Client) Metadata(ctx context.Context) (*metadata.Metadata, error) {
	var raw json.RawMessage
	if err := c.rpcClient.CallContext(ctx, &raw, "state_getMetadata"); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("node returned no metadata")
	}
	return metadata.Parse(raw)
}

// RuntimeVersion returns the node's current runtime version.
func (c *Client) RuntimeVersion(ctx context.Context) (metadata.RuntimeVersion, error) {
	var version gsrpctypes.RuntimeVersion
	if err := c.rpcClient.CallContext(ctx, &version, "state_getRuntimeVersion"); err != nil {
		return metadata.RuntimeVersion{}, err
	}
	return runtimeVersion(version), nil
}

func runtimeVersion(v gsrpctypes.RuntimeVersion) metadata.RuntimeVersion {
	return metadata.RuntimeVersion{SpecName: v.SpecName, SpecVersion: uint32(v.SpecVersion)}
}

// SubscribeRuntimeVersion delivers runtime versions to ch as upgrades happen.
func (c *Client) SubscribeRuntimeVersion(ctx context.Context, ch chan<- metadata.RuntimeVersion) (ethereum.Subscription, error) {
	return c.rpcClient.Subscribe(ctx, "state", ch, "runtimeVersion")
}

// SubscribeEvents opens the node's per-block event stream.
func (c *Client) SubscribeEvents(ctx context.Context) (*Subscription, error) {
	batches := make(chan *model.EventBatch, 16)
	sub, err := c.rpcClient.Subscribe(ctx, "gear", batches, "events")
	if err != nil {
		return nil, fmt.Errorf("subscribe events: %w", err)
	}
	return &Subscription{batches: batches, sub: sub}, nil
}

// Subscription is a live event stream backed by an RPC subscription.
type Subscription struct {
	batches chan *model.EventBatch
	sub     *rpc.ClientSubscription
}

func (s *Subscription) Batches() <-chan *model.EventBatch {
	return s.batches
}

// Err carries a transport failure; it is closed after Unsubscribe.
func (s *Subscription) Err() <-chan error {
	return s.sub.Err()
}

func (s *Subscription) Unsubscribe() {
	s.sub.Unsubscribe()
}
