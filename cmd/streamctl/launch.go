package main

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/golang-sql/civil"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/yakuhito/streaming-sdk-go/core/streamclient"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
)

var launchFlags = []cli.Flag{
	cli.StringFlag{Name: "asset", Usage: "asset id (hex) of the streamed token"},
	cli.StringFlag{Name: "recipient", Usage: "address receiving the stream"},
	cli.StringFlag{Name: "clawback", Usage: "address allowed to claw the stream back (optional)"},
	cli.StringFlag{Name: "amount", Usage: "amount of the token to stream"},
	cli.StringFlag{Name: "start", Usage: "start date (YYYY-MM-DD) or date-time (YYYY-MM-DDThh:mm:ss), UTC"},
	cli.StringFlag{Name: "end", Usage: "end date (YYYY-MM-DD) or date-time (YYYY-MM-DDThh:mm:ss), UTC"},
	feeFlag,
	cli.BoolFlag{Name: "send", Usage: "ask the wallet to fund the stream"},
}

// parseCalendar reads a UTC civil date or date-time.
func parseCalendar(s string) (time.Time, error) {
	if dt, err := civil.ParseDateTime(s); err == nil {
		return dt.In(time.UTC), nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return d.In(time.UTC), nil
}

func streamParams(ctx *cli.Context) (streamclient.StreamParams, error) {
	var p streamclient.StreamParams
	asset, err := types.Bytes32FromHex(ctx.String("asset"))
	if err != nil {
		return p, errors.Wrap(err, "asset")
	}
	amount, err := util.ParseAmount(ctx.String("amount"), util.CATDecimals)
	if err != nil {
		return p, err
	}
	start, err := parseCalendar(ctx.String("start"))
	if err != nil {
		return p, err
	}
	end, err := parseCalendar(ctx.String("end"))
	if err != nil {
		return p, err
	}
	fee, err := util.ParseAmount(ctx.String("fee"), util.XCHDecimals)
	if err != nil {
		return p, err
	}
	return streamclient.StreamParams{
		AssetID:   asset,
		Recipient: ctx.String("recipient"),
		Clawback:  ctx.String("clawback"),
		Amount:    amount,
		StartTime: start,
		EndTime:   end,
		Fee:       fee,
	}, nil
}

func dumpLaunch(w io.Writer, l *streamclient.Launch) {
	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = fmt.Fprintf(tw, "Send to:\t%s\n", l.Address)
	_, _ = fmt.Fprintf(tw, "Puzzle hash:\t%s\n", l.PuzzleHash)
	_, _ = fmt.Fprintf(tw, "Start:\t%s\n", calendar(l.Info.LastPaymentTime))
	_, _ = fmt.Fprintf(tw, "End:\t%s\n", calendar(l.Info.EndTime))
	for i, m := range l.Memos {
		_, _ = fmt.Fprintf(tw, "Memo %d:\t%s\n", i, m)
	}
	_ = tw.Flush()
	fmt.Fprint(w, buf.String())
}

func launch(ctx *cli.Context) error {
	p, err := streamParams(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := getTimeoutContext(ctx)
	defer cancel()

	send := ctx.Bool("send")
	s, err := newSession(gctx, ctx, send)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer s.close()

	var l *streamclient.Launch
	if send {
		l, err = s.client.CreateStream(gctx, p)
	} else {
		l, err = s.client.LaunchPlan(p)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	dumpLaunch(ctx.App.Writer, l)
	return nil
}
