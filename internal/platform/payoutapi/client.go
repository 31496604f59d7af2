// Package payoutapi is a minimal REST client for the payout platform.
package payoutapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"otc-settlement/internal/platform"
)

// Client talks to the payout platform API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a payout platform client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("payoutapi: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ApprovePayout confirms the payout, attaching the receipt PDF as the
// proof document. The platform expects multipart/form-data.
func (c *Client) ApprovePayout(ctx context.Context, payoutID string, proofPDF []byte) error {
	if payoutID == "" {
		return errors.New("payoutapi: empty payout id")
	}
	if len(proofPDF) == 0 {
		return errors.New("payoutapi: empty proof document")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("payout_id", payoutID); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("proof", "receipt.pdf")
	if err != nil {
		return err
	}
	if _, err := part.Write(proofPDF); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/payouts/"+payoutID+"/approve", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("payoutapi: http %d", resp.StatusCode)
	}
	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return err
	}
	if !decoded.Success {
		return fmt.Errorf("payoutapi: approval rejected: %s", decoded.Message)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

var _ platform.PayoutPlatform = (*Client)(nil)
