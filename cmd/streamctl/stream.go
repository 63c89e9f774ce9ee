package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-sql/civil"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/yakuhito/streaming-sdk-go/core/streamapi"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
)

// calendar renders a unix time as a UTC calendar date and time.
func calendar(unix int64) string {
	return civil.DateTimeOf(time.Unix(unix, 0).UTC()).String() + " UTC"
}

func amount(v uint64) string {
	return util.FormatAmount(v, util.CATDecimals)
}

func addressOf(ph types.Bytes32, prefix string) string {
	addr, err := util.EncodeAddress(ph, prefix)
	if err != nil {
		return ph.String()
	}
	return addr
}

// loadHistory accepts a stream id or the hex id of any coin of the stream.
// A truncated history is returned with its warning set.
func loadHistory(gctx context.Context, s *session, arg string) (*streamapi.History, error) {
	var (
		h   *streamapi.History
		err error
	)
	if strings.HasPrefix(arg, util.StreamPrefix+"1") {
		h, err = s.client.LoadStream(gctx, arg)
	} else {
		id, herr := types.Bytes32FromHex(arg)
		if herr != nil {
			return nil, cli.NewExitError(fmt.Sprintf("Invalid stream or coin id: %s", arg), 1)
		}
		h, err = s.client.LoadFromCoin(gctx, id)
	}
	var corrupt *types.CorruptLineageError
	if errors.As(err, &corrupt) && h != nil {
		return h, nil
	}
	return h, err
}

func status(h *streamapi.History) string {
	switch {
	case h.ClawedBack():
		return "clawed back"
	case h.FullyVested():
		return "fully vested"
	case h.Tip() == nil:
		return "truncated"
	default:
		return "streaming"
	}
}

func dumpHistory(w io.Writer, h *streamapi.History, prefix string, now time.Time) {
	buf := bytes.NewBuffer(nil)
	totals := streamapi.Summarize(h, now)
	info := h.Genesis.Info

	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = fmt.Fprintf(tw, "Stream:\t%s\n", h.StreamID)
	_, _ = fmt.Fprintf(tw, "Asset:\t%s\n", h.Genesis.AssetID)
	_, _ = fmt.Fprintf(tw, "Recipient:\t%s\n", addressOf(info.Recipient, prefix))
	if info.ClawbackPh != nil {
		_, _ = fmt.Fprintf(tw, "Clawback:\t%s\n", addressOf(*info.ClawbackPh, prefix))
	} else {
		_, _ = fmt.Fprintf(tw, "Clawback:\tnone\n")
	}
	_, _ = fmt.Fprintf(tw, "Start:\t%s\n", calendar(h.Genesis.StartTime))
	_, _ = fmt.Fprintf(tw, "End:\t%s\n", calendar(info.EndTime))
	_, _ = fmt.Fprintf(tw, "Last payment:\t%s\n", calendar(totals.LastPaymentTime))
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", status(h))
	_, _ = fmt.Fprintf(tw, "Total:\t%s\n", amount(totals.Total))
	_, _ = fmt.Fprintf(tw, "Claimed:\t%s\n", amount(totals.Claimed))
	_, _ = fmt.Fprintf(tw, "Claimable:\t%s\n", amount(totals.DisplayClaimable()))
	_, _ = fmt.Fprintf(tw, "Remaining:\t%s\n", amount(totals.Remaining))
	for _, ev := range h.Events {
		_, _ = fmt.Fprintf(tw, "Event:\t#%d %s %s\n", ev.Height, ev.Kind, amount(ev.Amount))
	}
	if h.Warning != nil {
		_, _ = fmt.Fprintf(tw, "Warning:\t%s\n", h.Warning)
	}
	_ = tw.Flush()
	fmt.Fprint(w, buf.String())
}

func show(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("Stream id is missing", 1)
	}
	gctx, cancel := getTimeoutContext(ctx)
	defer cancel()

	s, err := newSession(gctx, ctx, false)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer s.close()

	h, err := loadHistory(gctx, s, args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	dumpHistory(ctx.App.Writer, h, s.cfg.Prefix(), time.Now())
	return nil
}

func claim(ctx *cli.Context) error {
	return spend(ctx, types.ModeClaim)
}

func clawback(ctx *cli.Context) error {
	return spend(ctx, types.ModeClawback)
}

func spend(ctx *cli.Context, mode types.ClaimMode) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("Stream id is missing", 1)
	}
	fee, err := parseFee(ctx)
	if err != nil {
		return err
	}
	gctx, cancel := getTimeoutContext(ctx)
	defer cancel()

	s, err := newSession(gctx, ctx, true)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer s.close()

	h, err := loadHistory(gctx, s, args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	observe := func(step streamapi.Step) {
		fmt.Fprintln(ctx.App.Writer, step)
	}
	var res *streamapi.ClaimResult
	if mode == types.ModeClawback {
		res, err = s.client.Clawback(gctx, h, fee, observe)
	} else {
		res, err = s.client.Claim(gctx, h, fee, observe)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Paid %s at %s (fee %s XCH)\n",
		amount(res.Payment), calendar(res.PaymentTime), util.FormatAmount(res.Fee, util.XCHDecimals))
	return nil
}

func discover(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) == 0 {
		return cli.NewExitError("Address is missing", 1)
	}
	gctx, cancel := getTimeoutContext(ctx)
	defer cancel()

	s, err := newSession(gctx, ctx, false)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer s.close()

	found, err := s.client.Discover(gctx, args[0])
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	dumpDiscovered(ctx.App.Writer, found)
	return nil
}

func dumpDiscovered(w io.Writer, found []streamapi.DiscoveredStream) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "HEIGHT\tSTREAM\tAMOUNT\tEND")
	for _, d := range found {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.Height, d.ID, amount(d.Genesis.Coin.Amount), calendar(d.Genesis.Info.EndTime))
	}
	_ = tw.Flush()
}
