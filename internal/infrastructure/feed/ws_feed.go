package feed

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ltpTopicPrefix = "ltp."

// tickMessage is one last-traded-price push from the market data stream.
type tickMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		LTP decimal.Decimal `json:"ltp"`
		Ts  int64           `json:"ts"`
	} `json:"data"`
}

// PriceFeed streams last traded prices for option instruments over a websocket
// and fans them out to registered callbacks.
type PriceFeed struct {
	wsURL     string
	logger    *zap.Logger
	conn      *websocket.Conn
	done      chan struct{}
	callbacks []func(scripCode string, price decimal.Decimal)
	mu        sync.Mutex
}

func NewPriceFeed(wsURL string, logger *zap.Logger) *PriceFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceFeed{
		wsURL:  wsURL,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (f *PriceFeed) OnPriceUpdate(callback func(scripCode string, price decimal.Decimal)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, callback)
}

// Done is closed when the read loop exits.
func (f *PriceFeed) Done() <-chan struct{} {
	return f.done
}

// Connect dials the stream and subscribes to scripCodes. Calling it on a live
// connection only adds subscriptions.
func (f *PriceFeed) Connect(scripCodes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		return f.subscribe(scripCodes)
	}
	if f.wsURL == "" {
		return errors.New("price feed endpoint is not configured")
	}
	// A feed is single use; reconnecting needs a new PriceFeed.
	select {
	case <-f.done:
		return errors.New("price feed is closed")
	default:
	}

	c, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}
	f.conn = c
	go f.readLoop(c)

	return f.subscribe(scripCodes)
}

// Subscribe adds scrip codes to a live connection, connecting first if needed.
func (f *PriceFeed) Subscribe(scripCodes []string) error {
	f.mu.Lock()
	if f.conn == nil {
		f.mu.Unlock()
		return f.Connect(scripCodes)
	}
	defer f.mu.Unlock()
	return f.subscribe(scripCodes)
}

func (f *PriceFeed) subscribe(scripCodes []string) error {
	if len(scripCodes) == 0 {
		return nil
	}
	args := make([]string, len(scripCodes))
	for i, code := range scripCodes {
		args[i] = ltpTopicPrefix + code
	}
	return f.conn.WriteJSON(map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	})
}

func (f *PriceFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}

func (f *PriceFeed) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		close(f.done)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("Price feed read error", zap.Error(err))
			return
		}

		var tick tickMessage
		if err := json.Unmarshal(message, &tick); err != nil {
			f.logger.Debug("Price feed message ignored", zap.Error(err))
			continue
		}
		if !strings.HasPrefix(tick.Topic, ltpTopicPrefix) || !tick.Data.LTP.IsPositive() {
			continue
		}
		scripCode := strings.TrimPrefix(tick.Topic, ltpTopicPrefix)

		f.mu.Lock()
		callbacks := make([]func(string, decimal.Decimal), len(f.callbacks))
		copy(callbacks, f.callbacks)
		f.mu.Unlock()

		for _, cb := range callbacks {
			cb(scripCode, tick.Data.LTP)
		}
	}
}
