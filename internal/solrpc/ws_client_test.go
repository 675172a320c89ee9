package solrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var pumpProgram = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

func testWSConfig() *WSClientConfig {
	cfg := DefaultWSConfig()
	cfg.AllowInsecure = true
	cfg.SubscribeTimeout = 2 * time.Second
	return &cfg
}

// wsServer upgrades one connection and hands it to handle.
func wsServer(t *testing.T, handle func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func readRequest(t *testing.T, conn *websocket.Conn) (wsRequest, bool) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return wsRequest{}, false
	}
	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Errorf("unmarshal request: %v", err)
		return wsRequest{}, false
	}
	return req, true
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWSClient_RejectsInsecureEndpoint(t *testing.T) {
	_, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil)
	if !errors.Is(err, ErrInsecureEndpoint) {
		t.Fatalf("expected ErrInsecureEndpoint, got %v", err)
	}
}

func TestWSClient_ProgramSubscribe(t *testing.T) {
	payload := []byte{23, 183, 248, 55, 96, 216, 172, 96, 1}

	server, wsURL := wsServer(t, func(conn *websocket.Conn) {
		req, ok := readRequest(t, conn)
		if !ok {
			return
		}
		if req.Method != "programSubscribe" {
			t.Errorf("expected programSubscribe, got %s", req.Method)
		}
		raw, _ := json.Marshal(req.Params)
		if !strings.Contains(string(raw), `"dataSize":81`) {
			t.Errorf("expected dataSize filter in %s", raw)
		}
		if !strings.Contains(string(raw), `"encoding":"base64"`) {
			t.Errorf("expected base64 encoding in %s", raw)
		}

		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 42})
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "programNotification",
			"params": map[string]interface{}{
				"subscription": 42,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 555},
					"value": map[string]interface{}{
						"pubkey": "Curve1111111111111111111111111111111111111",
						"account": map[string]interface{}{
							"lamports": 10,
							"owner":    pumpProgram.String(),
							"data":     []string{base64.StdEncoding.EncodeToString(payload), "base64"},
						},
					},
				},
			},
		})
		drain(conn)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.ProgramSubscribe(context.Background(), pumpProgram, ProgramSubscribeOpts{DataSize: 81})
	if err != nil {
		t.Fatalf("ProgramSubscribe: %v", err)
	}

	select {
	case n := <-ch:
		if n.Slot != 555 {
			t.Errorf("expected slot 555, got %d", n.Slot)
		}
		if n.Owner != pumpProgram.String() {
			t.Errorf("unexpected owner %s", n.Owner)
		}
		if string(n.Data) != string(payload) {
			t.Errorf("data mismatch: %v", n.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for account notification")
	}
}

func TestWSClient_TransactionSubscribe(t *testing.T) {
	data := []byte{24, 30, 200, 40, 5, 28, 7, 119}

	server, wsURL := wsServer(t, func(conn *websocket.Conn) {
		req, ok := readRequest(t, conn)
		if !ok {
			return
		}
		if req.Method != "transactionSubscribe" {
			t.Errorf("expected transactionSubscribe, got %s", req.Method)
		}
		raw, _ := json.Marshal(req.Params)
		for _, want := range []string{
			`"accountInclude":["` + pumpProgram.String() + `"]`,
			`"vote":false`,
			`"failed":false`,
			`"transactionDetails":"full"`,
			`"maxSupportedTransactionVersion":0`,
		} {
			if !strings.Contains(string(raw), want) {
				t.Errorf("expected %s in %s", want, raw)
			}
		}

		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 7})
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "transactionNotification",
			"params": map[string]interface{}{
				"subscription": 7,
				"result": map[string]interface{}{
					"signature": "5sig",
					"slot":      900,
					"transaction": map[string]interface{}{
						"meta": map[string]interface{}{"err": nil},
						"transaction": map[string]interface{}{
							"signatures": []string{"5sig"},
							"message": map[string]interface{}{
								"accountKeys": []string{"k0", pumpProgram.String()},
								"instructions": []map[string]interface{}{
									{"programIdIndex": 1, "accounts": []int{0}, "data": base58.Encode(data)},
								},
							},
						},
					},
				},
			},
		})
		drain(conn)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.TransactionSubscribe(context.Background(), TransactionFilter{
		AccountInclude: []string{pumpProgram.String()},
	})
	if err != nil {
		t.Fatalf("TransactionSubscribe: %v", err)
	}

	select {
	case n := <-ch:
		if n.Slot != 900 || n.Transaction.Slot != 900 {
			t.Errorf("expected slot 900, got %d/%d", n.Slot, n.Transaction.Slot)
		}
		if n.Transaction.Signature != "5sig" {
			t.Errorf("unexpected signature %s", n.Transaction.Signature)
		}
		if len(n.Transaction.Message.Instructions) != 1 {
			t.Fatalf("expected 1 instruction, got %d", len(n.Transaction.Message.Instructions))
		}
		if string(n.Transaction.Message.Instructions[0].Data) != string(data) {
			t.Errorf("instruction data mismatch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transaction notification")
	}
}

func TestWSClient_SubscribeError(t *testing.T) {
	server, wsURL := wsServer(t, func(conn *websocket.Conn) {
		req, ok := readRequest(t, conn)
		if !ok {
			return
		}
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32601, "message": "Method not found"},
		})
		drain(conn)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	_, err = client.TransactionSubscribe(context.Background(), TransactionFilter{})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("expected code -32601, got %d", rpcErr.Code)
	}
}

func TestWSClient_ServerCloseSignalsDone(t *testing.T) {
	server, wsURL := wsServer(t, func(conn *websocket.Conn) {
		req, ok := readRequest(t, conn)
		if !ok {
			return
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 1})
		// Returning closes the connection.
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.ProgramSubscribe(context.Background(), pumpProgram, ProgramSubscribeOpts{}); err != nil {
		t.Fatalf("ProgramSubscribe: %v", err)
	}

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after server disconnect")
	}
	if client.Err() == nil {
		t.Error("expected Err after disconnect")
	}
	if errors.Is(client.Err(), ErrClientClosed) {
		t.Error("disconnect should not be reported as a local close")
	}
}

func TestWSClient_CloseClosesSubscriptions(t *testing.T) {
	server, wsURL := wsServer(t, func(conn *websocket.Conn) {
		req, ok := readRequest(t, conn)
		if !ok {
			return
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 3})
		drain(conn)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, testWSConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	ch, err := client.ProgramSubscribe(context.Background(), pumpProgram, ProgramSubscribeOpts{})
	if err != nil {
		t.Fatalf("ProgramSubscribe: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed")
	}
	if !errors.Is(client.Err(), ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", client.Err())
	}

	_, err = client.ProgramSubscribe(context.Background(), pumpProgram, ProgramSubscribeOpts{})
	if !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed after Close, got %v", err)
	}
}
