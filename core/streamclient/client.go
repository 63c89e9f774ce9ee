// Package streamclient wires the ledger, the wallet and the stream logic
// into a single client.
package streamclient

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/streamapi"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
	"go.uber.org/zap"
)

type Client struct {
	Ledger  types.LedgerClient `validate:"required"`
	Library *puzzles.Library   `validate:"required"`
	Prefix  string             `validate:"oneof=xch txch"`
	// Gateway is only needed to claim or create streams.
	Gateway types.SigningGateway
	logger  *zap.Logger

	reconstructorOptions []streamapi.ReconstructorOption
	claimerOptions       []streamapi.ClaimerOption

	codec         *streamapi.Codec
	reconstructor *streamapi.Reconstructor
	claimer       *streamapi.Claimer
}

var _ StreamClient = (*Client)(nil)

type Option func(*Client)

func NewClient(ctx context.Context, options ...Option) (*Client, error) {
	c := &Client{Prefix: util.MainnetPrefix}
	for _, option := range options {
		option(c)
	}

	// Validate the client
	if err := c.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	c.logger = logging.OrDefault(c.logger)

	c.codec = streamapi.NewCodec(c.Library)
	c.reconstructor = streamapi.NewReconstructor(c.Ledger, c.codec,
		append([]streamapi.ReconstructorOption{streamapi.WithReconstructorLogger(c.logger)}, c.reconstructorOptions...)...)
	if c.Gateway != nil {
		c.claimer = streamapi.NewClaimer(c.Library, c.Ledger, c.Gateway,
			append([]streamapi.ClaimerOption{
				streamapi.WithClaimerLogger(c.logger),
				streamapi.WithAddressPrefix(c.Prefix),
			}, c.claimerOptions...)...)
	}
	return c, nil
}

func (c *Client) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func WithLedger(ledger types.LedgerClient) Option {
	return func(c *Client) { c.Ledger = ledger }
}

func WithGateway(gateway types.SigningGateway) Option {
	return func(c *Client) { c.Gateway = gateway }
}

func WithLibrary(lib *puzzles.Library) Option {
	return func(c *Client) { c.Library = lib }
}

// WithPrefix selects the network by address prefix ("xch" or "txch").
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.Prefix = prefix }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithReconstructorOptions(opts ...streamapi.ReconstructorOption) Option {
	return func(c *Client) { c.reconstructorOptions = append(c.reconstructorOptions, opts...) }
}

func WithClaimerOptions(opts ...streamapi.ClaimerOption) Option {
	return func(c *Client) { c.claimerOptions = append(c.claimerOptions, opts...) }
}

func (c *Client) Network() string { return c.Prefix }

func (c *Client) StreamID(genesis types.Bytes32) util.StreamId {
	return util.NewStreamId(genesis)
}

// LoadStream accepts a "stream1..." id. The returned history may be partial:
// when the error is a *types.CorruptLineageError the history is still set.
func (c *Client) LoadStream(ctx context.Context, streamID string) (*streamapi.History, error) {
	id, err := util.NewStreamIdFromString(streamID)
	if err != nil {
		return nil, err
	}
	return c.reconstructor.FromGenesis(ctx, id)
}

func (c *Client) LoadFromCoin(ctx context.Context, coinID types.Bytes32) (*streamapi.History, error) {
	return c.reconstructor.FromCoin(ctx, coinID)
}

func (c *Client) Summary(history *streamapi.History, now time.Time) streamapi.Totals {
	return streamapi.Summarize(history, now)
}

func (c *Client) Claim(ctx context.Context, history *streamapi.History, feeBudget uint64, observe streamapi.ProgressObserver) (*streamapi.ClaimResult, error) {
	return c.spend(ctx, history, types.ClaimIntent{Mode: types.ModeClaim, FeeBudget: feeBudget}, observe)
}

func (c *Client) Clawback(ctx context.Context, history *streamapi.History, feeBudget uint64, observe streamapi.ProgressObserver) (*streamapi.ClaimResult, error) {
	return c.spend(ctx, history, types.ClaimIntent{Mode: types.ModeClawback, FeeBudget: feeBudget}, observe)
}

func (c *Client) spend(ctx context.Context, history *streamapi.History, intent types.ClaimIntent, observe streamapi.ProgressObserver) (*streamapi.ClaimResult, error) {
	if c.claimer == nil {
		return nil, errors.Wrap(types.ErrGatewayUnavailable, "client has no wallet")
	}
	if history == nil {
		return nil, errors.New("history is required")
	}
	res, err := c.claimer.Claim(ctx, history.Tip(), intent, observe)
	if err != nil {
		return nil, err
	}
	c.logger.Info("stream spent",
		zap.Stringer("stream", history.StreamID),
		zap.Stringer("mode", intent.Mode),
		zap.Uint64("payment", res.Payment))
	return res, nil
}

func (c *Client) Discover(ctx context.Context, recipientAddress string) ([]streamapi.DiscoveredStream, error) {
	ph, err := util.DecodeAddress(recipientAddress, c.Prefix)
	if err != nil {
		return nil, err
	}
	return c.reconstructor.Discover(ctx, ph)
}
