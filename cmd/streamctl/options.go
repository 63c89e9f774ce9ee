package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"github.com/yakuhito/streaming-sdk-go/core/coinset"
	"github.com/yakuhito/streaming-sdk-go/core/config"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/streamapi"
	"github.com/yakuhito/streaming-sdk-go/core/streamclient"
	"github.com/yakuhito/streaming-sdk-go/core/util"
	"github.com/yakuhito/streaming-sdk-go/core/wallet"
	"go.uber.org/zap"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to the YAML configuration",
		Value:  "streamctl.yml",
		EnvVar: "STREAMCTL_CONFIG",
	},
	cli.DurationFlag{
		Name:  "timeout, t",
		Usage: "overall time limit of the command",
		Value: time.Hour,
	},
	cli.StringFlag{
		Name:  "metrics",
		Usage: "serve ledger client metrics on this address, e.g. :9311",
	},
}

var feeFlag = cli.StringFlag{
	Name:  "fee",
	Usage: "network fee in XCH",
	Value: "0",
}

// session holds what a command needs; close releases the wallet.
type session struct {
	cfg    config.Config
	client *streamclient.Client
	logger *zap.Logger
	close  func()
}

func getTimeoutContext(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ctx.GlobalDuration("timeout"))
}

// newSession builds the client from the configuration. The wallet is only
// dialed when withWallet is set.
func newSession(gctx context.Context, ctx *cli.Context, withWallet bool) (*session, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetLogger(logger)

	lib, err := cfg.Library()
	if err != nil {
		return nil, err
	}
	ledgerOpts := []coinset.Option{
		coinset.WithHTTPClient(&http.Client{Timeout: cfg.Ledger.Timeout}),
		coinset.WithRateLimit(cfg.Ledger.RateLimit, cfg.Ledger.Burst),
		coinset.WithCacheSize(cfg.Ledger.CacheSize),
		coinset.WithLogger(logger),
	}
	if addr := ctx.GlobalString("metrics"); addr != "" {
		metrics, err := serveMetrics(addr, logger)
		if err != nil {
			return nil, err
		}
		ledgerOpts = append(ledgerOpts, coinset.WithMetrics(metrics))
	}
	ledger, err := coinset.NewClient(cfg.Ledger.Endpoint, ledgerOpts...)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, close: func() { _ = logger.Sync() }}
	opts := []streamclient.Option{
		streamclient.WithLedger(ledger),
		streamclient.WithLibrary(lib),
		streamclient.WithPrefix(cfg.Prefix()),
		streamclient.WithLogger(logger),
		streamclient.WithReconstructorOptions(streamapi.WithRetry(cfg.Ledger.Retry.Task())),
		streamclient.WithClaimerOptions(
			streamapi.WithClaimerRetry(cfg.Ledger.Retry.Task()),
			streamapi.WithKeySearch(cfg.Claim.KeyPageSize, cfg.Claim.KeySearchLimit),
			streamapi.WithTiming(cfg.Claim.TimeLag, cfg.Claim.ClawbackOffset),
			streamapi.WithPolling(cfg.Claim.Funding.Task(), cfg.Claim.Inclusion.Task()),
		),
	}

	if withWallet {
		if cfg.Wallet.URL == "" {
			return nil, errors.New("no wallet URL configured")
		}
		gwOpts := []wallet.Option{wallet.WithLogger(logger)}
		for k, v := range cfg.Wallet.Headers {
			gwOpts = append(gwOpts, wallet.WithHeader(k, v))
		}
		gw := wallet.NewGateway(cfg.Wallet.URL, gwOpts...)
		if err := gw.Connect(gctx); err != nil {
			return nil, err
		}
		gw.OnConnectionChange(func(connected bool) {
			if !connected {
				logger.Warn("wallet disconnected")
			}
		})
		s.close = func() {
			_ = gw.Close()
			_ = logger.Sync()
		}
		opts = append(opts, streamclient.WithGateway(gw))
	}

	s.client, err = streamclient.NewClient(gctx, opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// serveMetrics exposes a fresh registry on addr for the life of the process.
func serveMetrics(addr string, logger *zap.Logger) (*coinset.Metrics, error) {
	reg := prometheus.NewRegistry()
	metrics, err := coinset.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return metrics, nil
}

func parseFee(ctx *cli.Context) (uint64, error) {
	fee, err := util.ParseAmount(ctx.String("fee"), util.XCHDecimals)
	if err != nil {
		return 0, cli.NewExitError(err, 1)
	}
	return fee, nil
}
