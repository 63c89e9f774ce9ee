package streamapi

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"go.uber.org/zap"
)

// AmountClaimable is the part of coinAmount vested between the last payment
// and now: coinAmount * (now - last) / (end - last), truncated. now is
// clamped into [last, end]. The result is what the puzzle itself computes,
// so it can be used as to_pay in a solution.
func AmountClaimable(info types.StreamInfo, coinAmount uint64, now int64) uint64 {
	last, end := info.LastPaymentTime, info.EndTime
	if last >= end {
		return 0
	}
	if now < last {
		now = last
	}
	if now > end {
		now = end
	}
	elapsed := uint256.NewInt(uint64(now - last))
	span := uint256.NewInt(uint64(end - last))

	v := uint256.NewInt(coinAmount)
	v.Mul(v, elapsed)
	v.Div(v, span)
	return v.Uint64()
}

// Totals are the display amounts of a stream at one instant.
// Claimed + Claimable + Remaining == Total holds for any history built from
// the ledger. A history that breaks it gets a zero Remaining and the
// overshoot in Excess.
type Totals struct {
	Total     uint64
	Claimed   uint64
	Claimable uint64
	Remaining uint64
	Excess    uint64

	// ClawbackPayment is the final payment released by a clawback.
	ClawbackPayment uint64
	ClawedBack      bool
	FullyVested     bool
	// LastPaymentTime of the tip, or of the last known state when the
	// stream is closed.
	LastPaymentTime int64
}

// DisplayClaimable is what a viewer should be shown as claimable: for a
// clawed back stream it is the clawback's final payment, independent of time.
func (t Totals) DisplayClaimable() uint64 {
	if t.ClawedBack {
		return t.ClawbackPayment
	}
	return t.Claimable
}

// Summarize computes totals for h at now.
func Summarize(h *History, now time.Time) Totals {
	var t Totals
	if h == nil || h.Genesis == nil {
		return t
	}
	t.Total = h.Genesis.Coin.Amount
	t.LastPaymentTime = h.Genesis.Info.LastPaymentTime

	for _, ev := range h.Events {
		switch ev.Kind {
		case types.EventClaim:
			t.Claimed += ev.Amount
			if ev.State != nil {
				t.LastPaymentTime = ev.State.Info.LastPaymentTime
			}
		case types.EventClawback:
			t.Claimed += ev.Amount
			t.ClawbackPayment = ev.Amount
			t.ClawedBack = true
		}
	}

	if tip := h.Tip(); tip != nil {
		t.Claimable = AmountClaimable(tip.Info, tip.Coin.Amount, now.Unix())
		t.FullyVested = tip.FullyVested()
	}
	if t.Claimed+t.Claimable <= t.Total {
		t.Remaining = t.Total - t.Claimed - t.Claimable
	} else {
		t.Excess = t.Claimed + t.Claimable - t.Total
		logging.Logger.Warn("stream totals exceed the launched amount",
			zap.Stringer("stream", h.StreamID),
			zap.Uint64("total", t.Total),
			zap.Uint64("claimed", t.Claimed),
			zap.Uint64("claimable", t.Claimable))
	}
	return t
}
