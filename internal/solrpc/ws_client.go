package solrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by operations on a closed client.
var ErrClientClosed = errors.New("client closed")

// ErrInsecureEndpoint is returned for non-wss endpoints unless AllowInsecure is set.
var ErrInsecureEndpoint = errors.New("websocket endpoint must use wss://")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// BufferSize is the capacity of each notification channel.
	BufferSize int
	// AllowInsecure permits ws:// endpoints.
	AllowInsecure bool
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		PingInterval:     15 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		BufferSize:       10000,
	}
}

// subscription routes notifications of one subscription ID.
type subscription struct {
	accounts chan AccountNotification
	txs      chan TransactionNotification
}

func (s *subscription) close() {
	if s.accounts != nil {
		close(s.accounts)
	}
	if s.txs != nil {
		close(s.txs)
	}
}

type pendingSub struct {
	sub    *subscription
	result chan error
}

// WSClient implements PubSub using gorilla/websocket. It does not reconnect:
// a read failure closes Done and the owner decides what to do next.
type WSClient struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subs   map[int64]*subscription
	subsMu sync.RWMutex

	pendingSubs   map[uint64]*pendingSub
	pendingSubsMu sync.Mutex

	// done signals Close; failed signals Close or a dead connection.
	done     chan struct{}
	failed   chan struct{}
	failOnce sync.Once
	failErr  error
	wg       sync.WaitGroup
}

var _ PubSub = (*WSClient)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWSConfig().BufferSize
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse websocket endpoint: %w", err)
	}
	if u.Scheme != "wss" && !(cfg.AllowInsecure && u.Scheme == "ws") {
		return nil, fmt.Errorf("%w: %s", ErrInsecureEndpoint, u.Scheme)
	}

	c := &WSClient{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]*subscription),
		pendingSubs: make(map[uint64]*pendingSub),
		done:        make(chan struct{}),
		failed:      make(chan struct{}),
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.wg.Add(1)
	go c.readLoop()

	if cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}

	return c, nil
}

// Done is closed once the connection failed or the client was closed.
func (c *WSClient) Done() <-chan struct{} {
	return c.failed
}

// Err returns the reason Done was closed, or nil while the connection is healthy.
func (c *WSClient) Err() error {
	select {
	case <-c.failed:
		return c.failErr
	default:
		return nil
	}
}

func (c *WSClient) fail(err error) {
	c.failOnce.Do(func() {
		c.failErr = err
		close(c.failed)
	})
}

// ProgramSubscribe subscribes to accounts owned by program.
func (c *WSClient) ProgramSubscribe(ctx context.Context, program solana.PublicKey, opts ProgramSubscribeOpts) (<-chan AccountNotification, error) {
	cfg := map[string]interface{}{
		"encoding":   "base64",
		"commitment": commitmentOr(opts.Commitment),
	}
	if opts.DataSize > 0 {
		cfg["filters"] = []interface{}{
			map[string]interface{}{"dataSize": opts.DataSize},
		}
	}

	sub := &subscription{accounts: make(chan AccountNotification, c.config.BufferSize)}
	if err := c.subscribe(ctx, "programSubscribe", []interface{}{program.String(), cfg}, sub); err != nil {
		return nil, err
	}
	return sub.accounts, nil
}

// TransactionSubscribe subscribes to full transactions that mention any of
// filter.AccountInclude.
func (c *WSClient) TransactionSubscribe(ctx context.Context, filter TransactionFilter) (<-chan TransactionNotification, error) {
	params := []interface{}{
		map[string]interface{}{
			"accountInclude": filter.AccountInclude,
			"vote":           filter.IncludeVote,
			"failed":         filter.IncludeFailed,
		},
		map[string]interface{}{
			"commitment":                     commitmentOr(filter.Commitment),
			"encoding":                       "json",
			"transactionDetails":             "full",
			"maxSupportedTransactionVersion": 0,
		},
	}

	sub := &subscription{txs: make(chan TransactionNotification, c.config.BufferSize)}
	if err := c.subscribe(ctx, "transactionSubscribe", params, sub); err != nil {
		return nil, err
	}
	return sub.txs, nil
}

func commitmentOr(commitment string) string {
	if commitment == "" {
		return CommitmentProcessed
	}
	return commitment
}

// subscribe sends a subscription request and waits for its confirmation.
// The subscription is registered by the reader before any notification for
// it can be dispatched.
func (c *WSClient) subscribe(ctx context.Context, method string, params []interface{}, sub *subscription) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	pending := &pendingSub{sub: sub, result: make(chan error, 1)}

	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = pending
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	c.connMu.Unlock()
	if err != nil {
		dropPending()
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case err := <-pending.result:
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return nil
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return fmt.Errorf("%s: subscription timeout after %s", method, c.config.SubscribeTimeout)
	case <-c.failed:
		dropPending()
		if err := c.Err(); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return ErrClientClosed
	case <-ctx.Done():
		dropPending()
		return ctx.Err()
	}
}

// Close closes the WebSocket connection and every subscription channel.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)
	c.fail(ErrClientClosed)

	c.connMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
	c.connMu.Unlock()

	c.wg.Wait()

	// Reader has exited; nothing sends on these channels any more.
	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.close()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	return nil
}

// readLoop reads messages until the connection fails or the client closes.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.fail(fmt.Errorf("websocket read: %w", err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClient) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	switch {
	case env.Method != "":
		c.handleNotification(&env)
	case env.ID != 0:
		c.handleResponse(&env)
	}
}

// handleResponse resolves a pending subscription.
func (c *WSClient) handleResponse(env *wsEnvelope) {
	c.pendingSubsMu.Lock()
	pending, ok := c.pendingSubs[env.ID]
	if ok {
		delete(c.pendingSubs, env.ID)
	}
	c.pendingSubsMu.Unlock()
	if !ok {
		return
	}

	if env.Error != nil {
		pending.result <- env.Error
		return
	}

	var subID int64
	if err := json.Unmarshal(env.Result, &subID); err != nil {
		pending.result <- fmt.Errorf("parse subscription id: %w", err)
		return
	}

	c.subsMu.Lock()
	c.subs[subID] = pending.sub
	c.subsMu.Unlock()

	pending.result <- nil
}

// handleNotification decodes a notification and forwards it to its subscriber.
// Payloads that fail to decode are dropped.
func (c *WSClient) handleNotification(env *wsEnvelope) {
	if env.Params == nil {
		return
	}

	c.subsMu.RLock()
	sub, ok := c.subs[env.Params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	switch env.Method {
	case "programNotification":
		if sub.accounts == nil {
			return
		}
		n, err := decodeProgramNotification(env.Params.Result)
		if err != nil {
			return
		}
		// Block until delivered - never drop events
		select {
		case sub.accounts <- n:
		case <-c.done:
		}
	case "transactionNotification":
		if sub.txs == nil {
			return
		}
		n, err := decodeTransactionNotification(env.Params.Result)
		if err != nil {
			return
		}
		select {
		case sub.txs <- n:
		case <-c.done:
		}
	}
}

func decodeProgramNotification(raw json.RawMessage) (AccountNotification, error) {
	var res wsProgramResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return AccountNotification{}, err
	}

	n := AccountNotification{
		Pubkey:   res.Value.Pubkey,
		Owner:    res.Value.Account.Owner,
		Lamports: res.Value.Account.Lamports,
	}
	if res.Context != nil {
		n.Slot = res.Context.Slot
	}
	if len(res.Value.Account.Data) > 0 {
		data, err := base64.StdEncoding.DecodeString(res.Value.Account.Data[0])
		if err != nil {
			return AccountNotification{}, fmt.Errorf("decode account data: %w", err)
		}
		n.Data = data
	}
	return n, nil
}

func decodeTransactionNotification(raw json.RawMessage) (TransactionNotification, error) {
	var res wsTransactionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return TransactionNotification{}, err
	}
	if res.Transaction == nil {
		return TransactionNotification{}, fmt.Errorf("notification without transaction")
	}
	if res.Transaction.Slot == 0 {
		res.Transaction.Slot = res.Slot
	}

	tx, err := decodeTransaction(res.Transaction, res.Signature)
	if err != nil {
		return TransactionNotification{}, err
	}
	return TransactionNotification{Slot: res.Slot, Transaction: tx}, nil
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.failed:
			return
		case <-ticker.C:
			c.connMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.connMu.Unlock()
			if err != nil {
				c.fail(fmt.Errorf("websocket ping: %w", err))
				return
			}
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsEnvelope covers responses ({id, result|error}) and notifications ({method, params}).
type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsProgramResult struct {
	Context *wsContext `json:"context"`
	Value   struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Lamports uint64   `json:"lamports"`
			Owner    string   `json:"owner"`
			Data     []string `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

type wsTransactionResult struct {
	Signature   string                  `json:"signature"`
	Slot        uint64                  `json:"slot"`
	Transaction *rawTransactionEnvelope `json:"transaction"`
}
