package streamclient

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
	"go.uber.org/zap"
)

// StreamParams describe a stream to be created.
type StreamParams struct {
	AssetID   types.Bytes32
	Recipient string `validate:"required"`
	// Clawback is the address allowed to end the stream early. Empty
	// disables clawback.
	Clawback  string
	Amount    uint64    `validate:"gt=0"`
	StartTime time.Time `validate:"required"`
	EndTime   time.Time `validate:"required,gtfield=StartTime"`
	Fee       uint64
}

// Launch is where a new stream's coin must be sent, and with which memos.
type Launch struct {
	Info            types.StreamInfo
	InnerPuzzleHash types.Bytes32
	PuzzleHash      types.Bytes32
	// Address encodes the inner puzzle hash; wallets wrap it for the asset.
	Address string
	Memos   []types.HexBytes
}

// LaunchPlan derives the stream puzzle and memos without any I/O.
func (c *Client) LaunchPlan(params StreamParams) (*Launch, error) {
	if err := validator.New().Struct(params); err != nil {
		return nil, errors.WithStack(err)
	}
	if params.AssetID.IsZero() {
		return nil, errors.New("asset id is required")
	}
	recipient, err := util.DecodeAddress(params.Recipient, c.Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "recipient")
	}
	info := types.StreamInfo{
		Recipient:       recipient,
		EndTime:         params.EndTime.Unix(),
		LastPaymentTime: params.StartTime.Unix(),
	}
	if params.Clawback != "" {
		claw, err := util.DecodeAddress(params.Clawback, c.Prefix)
		if err != nil {
			return nil, errors.Wrap(err, "clawback")
		}
		info.ClawbackPh = &claw
	}

	inner := c.Library.StreamInnerPuzzleHash(info)
	address, err := util.EncodeAddress(inner, c.Prefix)
	if err != nil {
		return nil, err
	}
	return &Launch{
		Info:            info,
		InnerPuzzleHash: inner,
		PuzzleHash:      c.Library.StreamPuzzleHash(params.AssetID, info),
		Address:         address,
		Memos:           puzzles.LaunchHints(info),
	}, nil
}

// CreateStream asks the wallet to send Amount of the asset to the stream
// puzzle. The stream id is only known once the coin is confirmed; use
// Discover or Locate to find it.
func (c *Client) CreateStream(ctx context.Context, params StreamParams) (*Launch, error) {
	if c.Gateway == nil {
		return nil, errors.Wrap(types.ErrGatewayUnavailable, "client has no wallet")
	}
	launch, err := c.LaunchPlan(params)
	if err != nil {
		return nil, err
	}
	err = c.Gateway.RequestTransfer(ctx, types.TransferRequest{
		AssetID: hex.EncodeToString(params.AssetID[:]),
		Address: launch.Address,
		Amount:  params.Amount,
		Fee:     params.Fee,
		Memos:   launch.Memos,
	})
	if err != nil {
		return nil, errors.Wrap(err, "requesting stream transfer")
	}
	c.logger.Info("stream launch requested",
		zap.String("address", launch.Address),
		zap.Uint64("amount", params.Amount),
		zap.Int64("end_time", launch.Info.EndTime))
	return launch, nil
}

// Locate lists the coins sitting at the puzzle a launch targets.
func (c *Client) Locate(ctx context.Context, assetID types.Bytes32, launch *Launch) ([]types.CoinRecord, error) {
	return c.reconstructor.Locate(ctx, assetID, launch.Info)
}
