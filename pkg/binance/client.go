package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client handles Binance USDT-M futures REST access.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	timeSync   *TimeSync
	weights    *WeightTracker
	pacer      *rate.Limiter
}

// NewClient creates a new USDT-M futures client.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		weights:    NewWeightTracker(2400, time.Minute),
		pacer:      rate.NewLimiter(rate.Limit(10), 20),
	}
	c.timeSync = NewTimeSync(func() (int64, error) {
		return c.ServerTime()
	})
	return c
}

// SetBaseURL overrides the REST endpoint (tests).
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// StreamHost returns the websocket host for the user data stream.
func (c *Client) StreamHost() string {
	if c.cfg.Testnet {
		return "testnet.binancefuture.com"
	}
	return "fstream.binance.com"
}

// ServerTime fetches futures server time in milliseconds.
func (c *Client) ServerTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/fapi/v1/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

// SyncTime refreshes the server clock offset used in signed requests.
func (c *Client) SyncTime() error {
	return c.timeSync.Sync()
}

func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// Klines fetches recent candles from the public endpoint.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("klines status %d: %s", res.StatusCode, string(b))
	}

	var raw [][]any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}
	klines := make([]Kline, 0, len(raw))
	for _, item := range raw {
		if len(item) < 7 {
			continue
		}
		klines = append(klines, Kline{
			Symbol:    symbol,
			OpenTime:  anyToInt64(item[0]),
			Open:      anyToFloat(item[1]),
			High:      anyToFloat(item[2]),
			Low:       anyToFloat(item[3]),
			Close:     anyToFloat(item[4]),
			Volume:    anyToFloat(item[5]),
			CloseTime: anyToInt64(item[6]),
		})
	}
	return klines, nil
}

// SubmitOrder places a futures order.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return OrderAck{}, errors.New("binance futures: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	orderType := req.Type
	if orderType == "" {
		orderType = "MARKET"
	}
	params.Set("type", orderType)
	params.Set("quantity", formatFloat(req.Qty))
	if orderType == "LIMIT" {
		params.Set("price", formatFloat(req.Price))
		params.Set("timeInForce", "GTC")
	}
	if orderType == "STOP_MARKET" || orderType == "TAKE_PROFIT_MARKET" {
		params.Set("stopPrice", formatFloat(req.StopPrice))
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	body, err := c.doSigned(ctx, http.MethodPost, c.baseURL+"/fapi/v1/order", params)
	if err != nil {
		return OrderAck{}, err
	}
	var ack OrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return OrderAck{}, fmt.Errorf("decode order ack: %w", err)
	}
	return ack, nil
}

// CancelAllOpenOrders cancels all open orders for a symbol.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	_, err := c.doSigned(ctx, http.MethodDelete, c.baseURL+"/fapi/v1/allOpenOrders", params)
	return err
}

// AccountInfo returns futures account balances.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v2/account", params)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode account info: %w", err)
	}
	return &info, nil
}

// PositionRisk returns the position risk view; symbol optional.
func (c *Client) PositionRisk(ctx context.Context, symbol string) ([]PositionRisk, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}
	var pos []PositionRisk
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return pos, nil
}

// OpenOrders returns open orders; symbol optional.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v1/openOrders", params)
	if err != nil {
		return nil, err
	}
	var orders []OpenOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	return orders, nil
}

// Income fetches realized-P&L ledger rows since startTime (ms); 0 means the
// exchange default window.
func (c *Client) Income(ctx context.Context, symbol string, startTime int64, limit int) ([]Income, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	if startTime > 0 {
		params.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v1/income", params)
	if err != nil {
		return nil, err
	}
	var income []Income
	if err := json.Unmarshal(body, &income); err != nil {
		return nil, fmt.Errorf("decode income: %w", err)
	}
	return income, nil
}

// CreateListenKey creates a listen key for the user data stream.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fapi/v1/listenKey", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("create listen key status %d: %s", res.StatusCode, string(b))
	}
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends listen key life.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/fapi/v1/listenKey?listenKey="+listenKey, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("keepalive listen key status %d: %s", res.StatusCode, string(b))
	}
	return nil
}

// doSigned signs the canonical query string and sends the request.
func (c *Client) doSigned(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	params.Set("signature", sign(params.Encode(), c.cfg.APISecret))

	var (
		req *http.Request
		err error
	)
	encoded := params.Encode()
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	c.weights.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("binance futures %s %s status %d: %s", method, endpoint, res.StatusCode, string(body))
	}
	return body, nil
}

func anyToFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		return ToFloat(t)
	case float64:
		return t
	}
	return 0
}

func anyToInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		i, _ := strconv.ParseInt(t, 10, 64)
		return i
	}
	return 0
}
