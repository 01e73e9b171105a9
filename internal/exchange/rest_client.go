package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RESTClient talks to the venue's HTTP API. All requests share one resty
// client with retry on transient failures; a 429 honors the Retry-After
// header before the next attempt.
type RESTClient struct {
	http   *resty.Client
	apiKey string
	logger *logrus.Entry
}

// RESTConfig holds the connection settings for the venue API.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewRESTClient creates a client against the given base URL.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger := logrus.WithField("component", "exchange")

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests ||
				r.StatusCode() >= http.StatusInternalServerError
		}).
		SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
			if r != nil && r.StatusCode() == http.StatusTooManyRequests {
				if v := r.Header().Get("Retry-After"); v != "" {
					if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
						return time.Duration(secs) * time.Second, nil
					}
				}
			}
			return 0, nil
		})

	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &RESTClient{
		http:   httpClient,
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// WithAPIKey returns a copy of the client authenticating as a different
// wallet. The underlying transport and retry settings are shared.
func (c *RESTClient) WithAPIKey(apiKey string) *RESTClient {
	clone := *c
	clone.apiKey = apiKey
	return &clone
}

func (c *RESTClient) execute(ctx context.Context, req *resty.Request, method, url string) (*resty.Response, error) {
	req.SetContext(ctx)
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, errors.Wrapf(err, "request %s %s failed", method, url)
	}
	if resp.IsError() {
		return nil, errors.Errorf("request %s %s returned %d: %s", method, url, resp.StatusCode(), resp.String())
	}
	return resp, nil
}

// GetBalance fetches the token balance of a wallet.
func (c *RESTClient) GetBalance(ctx context.Context, address, token string) (*BalanceResponse, error) {
	var out BalanceResponse
	req := c.http.R().
		SetQueryParam("address", address).
		SetQueryParam("token", token).
		SetResult(&out)
	if _, err := c.execute(ctx, req, http.MethodGet, "/api/v1/balance"); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPosition fetches the current position of a wallet in a market.
// A wallet with no open position comes back with a zero Size.
func (c *RESTClient) GetPosition(ctx context.Context, wallet, market string) (*PositionResponse, error) {
	var out PositionResponse
	req := c.http.R().
		SetQueryParam("wallet", wallet).
		SetQueryParam("market", market).
		SetResult(&out)
	if _, err := c.execute(ctx, req, http.MethodGet, "/api/v1/position"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder submits an order. A response without an order_id is a
// creation failure even when the HTTP status is 200.
func (c *RESTClient) CreateOrder(ctx context.Context, in CreateOrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	req := c.http.R().
		SetBody(in).
		SetResult(&out)
	if _, err := c.execute(ctx, req, http.MethodPost, "/api/v1/orders"); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		return nil, errors.New("order creation response missing order_id")
	}
	c.logger.Debugf("order created: %s %s %s size=%s", out.OrderID, in.Side, in.OrderType, in.Size)
	return &out, nil
}

// GetOrder fetches the remote status of an order.
func (c *RESTClient) GetOrder(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	var out OrderStatusResponse
	req := c.http.R().SetResult(&out)
	url := fmt.Sprintf("/api/v1/orders/%s", orderID)
	if _, err := c.execute(ctx, req, http.MethodGet, url); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder requests cancellation of an order.
func (c *RESTClient) CancelOrder(ctx context.Context, orderID string) (*CancelResponse, error) {
	var out CancelResponse
	req := c.http.R().SetResult(&out)
	url := fmt.Sprintf("/api/v1/orders/%s", orderID)
	if _, err := c.execute(ctx, req, http.MethodDelete, url); err != nil {
		return nil, err
	}
	return &out, nil
}

// Withdraw sweeps an amount out of a wallet.
func (c *RESTClient) Withdraw(ctx context.Context, address string, amount decimal.Decimal) error {
	body := map[string]string{
		"address": address,
		"amount":  amount.String(),
	}
	req := c.http.R().SetBody(body)
	if _, err := c.execute(ctx, req, http.MethodPost, "/api/v1/withdraw"); err != nil {
		return err
	}
	c.logger.Infof("withdraw submitted: %s amount=%s", address, amount.String())
	return nil
}

// Close releases idle connections.
func (c *RESTClient) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}
