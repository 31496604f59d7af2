// Package tradeapi is a minimal REST client for the trading platform.
package tradeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"otc-settlement/internal/platform"
)

// Client talks to the trading platform API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a trading platform client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("tradeapi: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type apiResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// codeOrderNotInProgress is the platform's answer when the order has
// left the releasable state, usually because it was already released.
const codeOrderNotInProgress = "ORDER_NOT_IN_PROGRESS"

// ReleaseAssets releases the crypto for an order.
func (c *Client) ReleaseAssets(ctx context.Context, orderID string) error {
	if orderID == "" {
		return errors.New("tradeapi: empty order id")
	}
	var resp apiResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/orders/"+orderID+"/release", nil, &resp)
	if err != nil {
		return err
	}
	switch resp.Code {
	case "", "OK":
		return nil
	case codeOrderNotInProgress:
		return platform.ErrOrderNotInProgress
	default:
		return fmt.Errorf("tradeapi: release rejected: %s: %s", resp.Code, resp.Message)
	}
}

// SendChatMessage posts a message into the order chat.
func (c *Client) SendChatMessage(ctx context.Context, orderID, text string) error {
	if orderID == "" {
		return errors.New("tradeapi: empty order id")
	}
	body := map[string]any{"text": text}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/orders/"+orderID+"/chat", body, nil)
}

// DeleteAdvertisement removes an advertisement.
func (c *Client) DeleteAdvertisement(ctx context.Context, adID string) error {
	if adID == "" {
		return errors.New("tradeapi: empty ad id")
	}
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/ads/"+adID, nil, nil)
}

type orderItem struct {
	OrderID    string  `json:"orderId"`
	Status     string  `json:"status"`
	Amount     int64   `json:"amount"`
	Price      float64 `json:"price"`
	CardNumber string  `json:"cardNumber"`
	CreatedAt  int64   `json:"createdAt"`
	UpdatedAt  int64   `json:"updatedAt"`
}

type ordersPage struct {
	Data    []orderItem `json:"data"`
	HasNext bool        `json:"hasNext"`
}

// ListOrders fetches orders in the given statuses for an account.
func (c *Client) ListOrders(ctx context.Context, accountID string, statuses []string) ([]platform.Order, error) {
	if accountID == "" {
		return nil, errors.New("tradeapi: empty account id")
	}
	var orders []platform.Order
	for page := 0; page < 50; page++ {
		path := fmt.Sprintf("/api/v1/accounts/%s/orders?page=%d&pageSize=100", accountID, page)
		if len(statuses) > 0 {
			path += "&status=" + strings.Join(statuses, ",")
		}
		var resp ordersPage
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			orders = append(orders, platform.Order{
				OrderID:    item.OrderID,
				AccountID:  accountID,
				Status:     item.Status,
				Amount:     item.Amount,
				Price:      item.Price,
				CardNumber: item.CardNumber,
				CreatedAt:  time.UnixMilli(item.CreatedAt).UTC(),
				UpdatedAt:  time.UnixMilli(item.UpdatedAt).UTC(),
			})
		}
		if !resp.HasNext {
			break
		}
	}
	return orders, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return platform.ErrOrderNotInProgress
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("tradeapi: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ platform.TradingPlatform = (*Client)(nil)
