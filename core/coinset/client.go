// Package coinset implements types.LedgerClient over the coinset.org style
// full node HTTP RPC.
package coinset

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	MainnetEndpoint   = "https://api.coinset.org"
	Testnet11Endpoint = "https://testnet11.api.coinset.org"

	DefaultCacheSize = 1024
	DefaultTimeout   = 30 * time.Second
)

var json = sonic.ConfigStd

// Client talks to one full node endpoint. It is safe for concurrent use.
//
// Records of spent coins and their puzzle reveals never change, so they are
// kept in an LRU cache; unspent records are always fetched.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	cache    *lru.Cache
	metrics  *Metrics
	logger   *zap.Logger

	cacheSize int
}

var _ types.LedgerClient = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = nil
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCacheSize sets the number of cached spent records and spends. Zero
// disables the cache.
func WithCacheSize(n int) Option {
	return func(cl *Client) { cl.cacheSize = n }
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for endpoint, e.g. MainnetEndpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("coinset endpoint is required")
	}
	c := &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheSize > 0 {
		cache, err := lru.New(c.cacheSize)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		c.cache = cache
	}
	c.logger = logging.OrDefault(c.logger)
	return c, nil
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (e envelope) failure() error {
	if e.Success {
		return nil
	}
	if strings.Contains(strings.ToLower(e.Error), "not found") {
		return errors.Wrap(types.ErrNotFound, e.Error)
	}
	return errors.Errorf("ledger error: %s", e.Error)
}

// post sends one RPC and decodes the body into out. Network failures and
// 5xx or 429 responses are marked transient.
func (c *Client) post(ctx context.Context, method string, params any, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case types.IsTransient(err):
			outcome = "transient"
		default:
			outcome = "error"
		}
		c.metrics.observe(method, outcome, time.Since(start).Seconds())
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.Transient(errors.Wrapf(err, "%s", method))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transient(errors.Wrapf(err, "%s: reading response", method))
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return types.Transient(errors.Errorf("%s: unexpected HTTP status code: %d", method, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected HTTP status code: %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "%s: decoding response", method)
	}
	return nil
}

func (c *Client) cached(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if ok {
		c.metrics.hit()
	}
	return v, ok
}

func (c *Client) remember(key string, v any) {
	if c.cache != nil {
		c.cache.Add(key, v)
	}
}

// GetCoinRecordByName implements types.LedgerClient.
func (c *Client) GetCoinRecordByName(ctx context.Context, id types.Bytes32) (*types.CoinRecord, error) {
	key := "record:" + id.String()
	if v, ok := c.cached(key); ok {
		rec := v.(types.CoinRecord)
		return &rec, nil
	}

	var resp struct {
		envelope
		CoinRecord *types.CoinRecord `json:"coin_record"`
	}
	if err := c.post(ctx, "get_coin_record_by_name", map[string]any{"name": id}, &resp); err != nil {
		return nil, err
	}
	if err := resp.failure(); err != nil {
		return nil, err
	}
	if resp.CoinRecord == nil {
		return nil, errors.Wrapf(types.ErrNotFound, "coin %s", id)
	}
	if resp.CoinRecord.Spent {
		c.remember(key, *resp.CoinRecord)
	}
	return resp.CoinRecord, nil
}

// GetPuzzleAndSolution implements types.LedgerClient.
func (c *Client) GetPuzzleAndSolution(ctx context.Context, id types.Bytes32, height uint32) (*types.CoinSpend, error) {
	key := "spend:" + id.String()
	if v, ok := c.cached(key); ok {
		spend := v.(types.CoinSpend)
		return &spend, nil
	}

	var resp struct {
		envelope
		CoinSolution *types.CoinSpend `json:"coin_solution"`
	}
	params := map[string]any{"coin_id": id, "height": height}
	if err := c.post(ctx, "get_puzzle_and_solution", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.failure(); err != nil {
		return nil, err
	}
	if resp.CoinSolution == nil {
		return nil, errors.Wrapf(types.ErrNotFound, "spend of coin %s", id)
	}
	c.remember(key, *resp.CoinSolution)
	return resp.CoinSolution, nil
}

type recordsResponse struct {
	envelope
	CoinRecords []types.CoinRecord `json:"coin_records"`
}

// GetCoinRecordsByHint implements types.LedgerClient.
func (c *Client) GetCoinRecordsByHint(ctx context.Context, hint types.Bytes32, includeSpent bool) ([]types.CoinRecord, error) {
	var resp recordsResponse
	params := map[string]any{"hint": hint, "include_spent_coins": includeSpent}
	if err := c.post(ctx, "get_coin_records_by_hint", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.failure(); err != nil {
		return nil, err
	}
	return resp.CoinRecords, nil
}

// GetCoinRecordsByPuzzleHash implements types.LedgerClient.
func (c *Client) GetCoinRecordsByPuzzleHash(ctx context.Context, puzzleHash types.Bytes32, includeSpent bool) ([]types.CoinRecord, error) {
	var resp recordsResponse
	params := map[string]any{"puzzle_hash": puzzleHash, "include_spent_coins": includeSpent}
	if err := c.post(ctx, "get_coin_records_by_puzzle_hash", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.failure(); err != nil {
		return nil, err
	}
	return resp.CoinRecords, nil
}

// PushTx implements types.LedgerClient. A bundle the mempool refuses is not
// an error: the returned status carries the ledger's verdict.
func (c *Client) PushTx(ctx context.Context, bundle types.SpendBundle) (*types.TxStatus, error) {
	var resp struct {
		envelope
		Status string `json:"status"`
	}
	if err := c.post(ctx, "push_tx", map[string]any{"spend_bundle": bundle}, &resp); err != nil {
		return nil, err
	}
	status := &types.TxStatus{
		Accepted: resp.Success && resp.Status == "SUCCESS",
		Status:   resp.Status,
		Error:    resp.Error,
	}
	c.logger.Debug("bundle pushed",
		zap.Int("spends", len(bundle.CoinSpends)),
		zap.String("status", status.Status),
		zap.String("error", status.Error))
	return status, nil
}
