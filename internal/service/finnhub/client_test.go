package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseFrame(t *testing.T) {
	ticks, err := parseFrame([]byte(`{"type":"trade","data":[{"s":"BINANCE:BTCUSDT","p":64000.5,"v":0.01,"t":1700000000123}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("want 1 tick, got %d", len(ticks))
	}
	if ticks[0].Timestamp != 1700000000 || ticks[0].Price != 64000.5 || ticks[0].Symbol != "BINANCE:BTCUSDT" {
		t.Fatalf("unexpected tick %+v", ticks[0])
	}

	ticks, err = parseFrame([]byte(`{"type":"ping"}`))
	if err != nil || len(ticks) != 0 {
		t.Fatalf("ping frames carry no ticks: %v %v", ticks, err)
	}
	if _, err := parseFrame([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStreamOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "k" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil || sub["type"] != "subscribe" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"`+sub["symbol"]+`","p":1.5,"v":2,"t":1700000000000}]}`))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := New("k", "ws"+strings.TrimPrefix(srv.URL, "http"), []string{"AAPL"}, 0, time.Second, nil)
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ticks, errs := c.Read(ctx)
	select {
	case tk := <-ticks:
		if tk == nil || tk.Symbol != "AAPL" || tk.Price != 1.5 {
			t.Fatalf("unexpected tick %+v", tk)
		}
	case err := <-errs:
		t.Fatalf("unexpected error %v", err)
	case <-ctx.Done():
		t.Fatalf("timed out")
	}
}
