// Package wallet implements types.SigningGateway as JSON-RPC 2.0 over a
// websocket bridge to the user's wallet.
package wallet

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"go.uber.org/zap"
)

const (
	MethodGetPublicKeys  = "chia_getPublicKeys"
	MethodSignCoinSpends = "chia_signCoinSpends"
	MethodSend           = "chia_send"

	// Time allowed to write a message to the bridge.
	writeWait = 10 * time.Second
)

var json = sonic.ConfigStd

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Result  rawResult `json:"result"`
	Error   *rpcError `json:"error"`
}

// rawResult keeps a result undecoded until the caller knows its type.
type rawResult []byte

func (r *rawResult) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// Gateway is a single owned connection to the wallet bridge. Listeners
// registered with OnConnectionChange learn about every connect and
// disconnect.
type Gateway struct {
	url    string
	dialer *websocket.Dialer
	header map[string][]string
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan response
	subs    map[int]func(connected bool)
	nextSub int

	writeMu sync.Mutex
}

var _ types.SigningGateway = (*Gateway)(nil)

type Option func(*Gateway)

func WithDialer(d *websocket.Dialer) Option {
	return func(g *Gateway) { g.dialer = d }
}

// WithHeader adds HTTP headers to the websocket handshake, e.g. a session token.
func WithHeader(key, value string) Option {
	return func(g *Gateway) {
		if g.header == nil {
			g.header = map[string][]string{}
		}
		g.header[key] = append(g.header[key], value)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway creates a disconnected gateway for the bridge at url (ws:// or wss://).
func NewGateway(url string, opts ...Option) *Gateway {
	g := &Gateway{
		url:     url,
		dialer:  websocket.DefaultDialer,
		pending: map[string]chan response{},
		subs:    map[int]func(bool){},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrDefault(g.logger)
	return g
}

// OnConnectionChange registers fn and returns a function that removes it.
// fn runs on the goroutine that observed the change and must not block.
func (g *Gateway) OnConnectionChange(fn func(connected bool)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

func (g *Gateway) publish(connected bool) {
	g.mu.Lock()
	fns := make([]func(bool), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

// Connected reports whether the bridge connection is up.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil
}

// Connect dials the bridge. Connecting an already connected gateway is a no-op.
func (g *Gateway) Connect(ctx context.Context) error {
	if g.Connected() {
		return nil
	}
	conn, _, err := g.dialer.DialContext(ctx, g.url, g.header)
	if err != nil {
		return errors.Wrap(types.ErrGatewayUnavailable, err.Error())
	}

	g.mu.Lock()
	if g.conn != nil {
		g.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	g.conn = conn
	g.mu.Unlock()

	g.logger.Info("wallet connected", zap.String("url", g.url))
	go g.readLoop(conn)
	g.publish(true)
	return nil
}

// Close drops the connection. Once it returns the gateway reports itself
// disconnected, and calls in flight fail with ErrGatewayUnavailable.
func (g *Gateway) Close() error {
	g.mu.Lock()
	conn := g.conn
	g.detach()
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	g.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	g.writeMu.Unlock()
	err := conn.Close()
	g.disconnected()
	return err
}

// readLoop is the only reader of conn. It hands responses to their callers
// and tears the connection down on the first read error.
func (g *Gateway) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("wallet connection lost", zap.Error(err))
			}
			g.drop(conn)
			return
		}
		var resp response
		if err := json.Unmarshal(msg, &resp); err != nil {
			g.logger.Warn("malformed wallet message", zap.Error(err))
			continue
		}
		// Send under mu: detach closes pending channels while holding it.
		g.mu.Lock()
		ch, ok := g.pending[resp.ID]
		delete(g.pending, resp.ID)
		if ok {
			ch <- resp
		}
		g.mu.Unlock()
		if !ok {
			g.logger.Debug("wallet message without caller", zap.String("id", resp.ID))
		}
	}
}

// drop tears conn down unless Close already did.
func (g *Gateway) drop(conn *websocket.Conn) {
	g.mu.Lock()
	if g.conn != conn {
		g.mu.Unlock()
		return
	}
	g.detach()
	g.mu.Unlock()

	_ = conn.Close()
	g.disconnected()
}

// detach forgets the connection and fails its pending calls. g.mu must be held.
func (g *Gateway) detach() {
	g.conn = nil
	for _, ch := range g.pending {
		close(ch)
	}
	g.pending = map[string]chan response{}
}

func (g *Gateway) disconnected() {
	g.logger.Info("wallet disconnected", zap.String("url", g.url))
	g.publish(false)
}

func (g *Gateway) call(ctx context.Context, method string, params any, result any) error {
	g.mu.Lock()
	conn := g.conn
	if conn == nil {
		g.mu.Unlock()
		return errors.Wrapf(types.ErrGatewayUnavailable, "%s: not connected", method)
	}
	id := uuid.NewString()
	ch := make(chan response, 1)
	g.pending[id] = ch
	g.mu.Unlock()

	forget := func() {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}

	body, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		forget()
		return errors.Wrapf(err, "%s: encoding request", method)
	}
	g.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, body)
	g.writeMu.Unlock()
	if err != nil {
		forget()
		return errors.Wrapf(types.ErrGatewayUnavailable, "%s: %v", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return errors.Wrapf(types.ErrGatewayUnavailable, "%s: connection closed", method)
		}
		if resp.Error != nil {
			return errors.Errorf("%s: wallet error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		if result == nil {
			return nil
		}
		return errors.Wrapf(json.Unmarshal(resp.Result, result), "%s: decoding result", method)
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// ListPublicKeys implements types.SigningGateway.
func (g *Gateway) ListPublicKeys(ctx context.Context, limit, offset int) ([][]byte, error) {
	var keys []string
	params := map[string]any{"limit": limit, "offset": offset}
	if err := g.call(ctx, MethodGetPublicKeys, params, &keys); err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		b, err := decodeHex(k)
		if err != nil {
			return nil, errors.Wrapf(err, "public key %q", k)
		}
		out = append(out, b)
	}
	return out, nil
}

// SignSpends implements types.SigningGateway and returns the aggregated
// signature.
func (g *Gateway) SignSpends(ctx context.Context, spends []types.CoinSpend) ([]byte, error) {
	var sig string
	params := map[string]any{"coinSpends": spends, "partialSign": false}
	if err := g.call(ctx, MethodSignCoinSpends, params, &sig); err != nil {
		return nil, err
	}
	b, err := decodeHex(sig)
	if err != nil {
		return nil, errors.Wrap(err, "signature")
	}
	return b, nil
}

// RequestTransfer implements types.SigningGateway.
func (g *Gateway) RequestTransfer(ctx context.Context, req types.TransferRequest) error {
	memos := make([]string, len(req.Memos))
	for i, m := range req.Memos {
		memos[i] = hex.EncodeToString(m)
	}
	params := map[string]any{
		"assetId": req.AssetID,
		"address": req.Address,
		"amount":  strconv.FormatUint(req.Amount, 10),
		"fee":     strconv.FormatUint(req.Fee, 10),
		"memos":   memos,
	}
	return g.call(ctx, MethodSend, params, nil)
}
