package streamclient

import (
	"context"
	"time"

	"github.com/yakuhito/streaming-sdk-go/core/streamapi"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
)

// StreamClient is the surface an application uses to work with streams.
type StreamClient interface {
	// LoadStream rebuilds the history of a stream from its "stream1..." id
	LoadStream(ctx context.Context, streamID string) (*streamapi.History, error)
	// LoadFromCoin rebuilds the history of the stream any of its coins belongs to
	LoadFromCoin(ctx context.Context, coinID types.Bytes32) (*streamapi.History, error)
	// Summary computes claimed, claimable and remaining amounts at now
	Summary(history *streamapi.History, now time.Time) streamapi.Totals
	// Claim pays the vested amount to the recipient
	Claim(ctx context.Context, history *streamapi.History, feeBudget uint64, observe streamapi.ProgressObserver) (*streamapi.ClaimResult, error)
	// Clawback ends the stream, returning unvested value to the clawback party
	Clawback(ctx context.Context, history *streamapi.History, feeBudget uint64, observe streamapi.ProgressObserver) (*streamapi.ClaimResult, error)
	// Discover lists the streams launched to a recipient address
	Discover(ctx context.Context, recipientAddress string) ([]streamapi.DiscoveredStream, error)
	// LaunchPlan derives where and with which memos a new stream must be sent
	LaunchPlan(params StreamParams) (*Launch, error)
	// CreateStream asks the wallet to send the asset that starts a new stream
	CreateStream(ctx context.Context, params StreamParams) (*Launch, error)
	/*
	 * utils for the client
	 */
	// StreamID encodes a genesis coin id
	StreamID(genesis types.Bytes32) util.StreamId
	// Network returns the address prefix in use
	Network() string
}
