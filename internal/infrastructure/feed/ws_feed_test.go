package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T, messages []string, hold bool) (*httptest.Server, chan map[string]interface{}) {
	t.Helper()
	subs := make(chan map[string]interface{}, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if hold {
			_, _, _ = conn.ReadMessage()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, subs
}

func TestPriceFeed_DispatchesTicks(t *testing.T) {
	srv, subs := newStreamServer(t, []string{
		`{"topic":"ltp.OPT1","data":{"ltp":"33.10","ts":1}}`,
		`not json`,
		`{"topic":"depth.OPT1","data":{"ltp":"1"}}`,
		`{"topic":"ltp.OPT1","data":{"ltp":"0","ts":2}}`,
		`{"topic":"ltp.OPT2","data":{"ltp":"12.5","ts":3}}`,
	}, true)

	f := NewPriceFeed("ws"+strings.TrimPrefix(srv.URL, "http"), nil)

	var mu sync.Mutex
	got := map[string]decimal.Decimal{}
	f.OnPriceUpdate(func(code string, price decimal.Decimal) {
		mu.Lock()
		defer mu.Unlock()
		got[code] = price
	})

	require.NoError(t, f.Connect([]string{"OPT1", "OPT2"}))
	defer f.Close()

	select {
	case sub := <-subs:
		assert.Equal(t, "subscribe", sub["op"])
		assert.Equal(t, []interface{}{"ltp.OPT1", "ltp.OPT2"}, sub["args"])
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got["OPT1"].Equal(decimal.RequireFromString("33.10")))
	assert.True(t, got["OPT2"].Equal(decimal.RequireFromString("12.5")))
}

func TestPriceFeed_ConnectWithoutEndpoint(t *testing.T) {
	f := NewPriceFeed("", nil)
	assert.Error(t, f.Connect([]string{"OPT1"}))
}

func TestPriceFeed_DoneWhenServerHangsUp(t *testing.T) {
	srv, subs := newStreamServer(t, nil, false)
	f := NewPriceFeed("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, f.Connect([]string{"OPT1"}))
	<-subs

	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
}
