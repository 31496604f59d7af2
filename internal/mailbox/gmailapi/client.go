// Package gmailapi adapts the Gmail REST API to the mailbox contract.
// Token refresh is delegated to a TokenSource; this client only does
// the message and attachment plumbing.
package gmailapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"otc-settlement/internal/mailbox"
)

const defaultBaseURL = "https://gmail.googleapis.com"

// TokenSource yields a bearer token for an account.
type TokenSource interface {
	Token(ctx context.Context, account string) (string, error)
}

// StaticTokenSource returns the same token for every account. Useful
// for single-account deployments and tests.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context, string) (string, error) {
	if s == "" {
		return "", errors.New("gmailapi: empty token")
	}
	return string(s), nil
}

// Client is a minimal Gmail REST client.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a Gmail client.
func NewClient(tokens TokenSource, opts ...ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("gmailapi: nil token source")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type messageListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

// SearchMessages lists message ids matching the query.
func (c *Client) SearchMessages(ctx context.Context, account string, q mailbox.Query) ([]mailbox.MessageRef, error) {
	if account == "" {
		return nil, errors.New("gmailapi: empty account")
	}

	params := url.Values{}
	params.Set("q", buildQuery(q))
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}

	var refs []mailbox.MessageRef
	pageToken := ""
	for {
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		path := "/gmail/v1/users/" + url.PathEscape(account) + "/messages?" + params.Encode()
		var resp messageListResponse
		if err := c.doJSON(ctx, account, path, &resp); err != nil {
			return nil, err
		}
		for _, msg := range resp.Messages {
			refs = append(refs, mailbox.MessageRef{ID: msg.ID})
		}
		pageToken = resp.NextPageToken
		if pageToken == "" || (q.MaxResults > 0 && len(refs) >= q.MaxResults) {
			break
		}
	}
	if q.MaxResults > 0 && len(refs) > q.MaxResults {
		refs = refs[:q.MaxResults]
	}
	return refs, nil
}

// buildQuery renders the Gmail search expression.
func buildQuery(q mailbox.Query) string {
	var parts []string
	if q.From != "" {
		parts = append(parts, "from:"+q.From)
	}
	if q.HasAttachment {
		parts = append(parts, "has:attachment")
	}
	if !q.After.IsZero() {
		parts = append(parts, "after:"+strconv.FormatInt(q.After.Unix(), 10))
	}
	return strings.Join(parts, " ")
}

type messagePart struct {
	Filename string `json:"filename"`
	Body     struct {
		AttachmentID string `json:"attachmentId"`
		Size         int    `json:"size"`
		Data         string `json:"data"`
	} `json:"body"`
	Parts []messagePart `json:"parts"`
}

type messageResponse struct {
	Payload messagePart `json:"payload"`
}

type attachmentResponse struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// GetAttachments fetches and decodes every attachment of a message.
func (c *Client) GetAttachments(ctx context.Context, account, messageID string) ([]mailbox.Attachment, error) {
	if account == "" || messageID == "" {
		return nil, errors.New("gmailapi: empty account or message id")
	}

	var msg messageResponse
	path := "/gmail/v1/users/" + url.PathEscape(account) + "/messages/" + url.PathEscape(messageID)
	if err := c.doJSON(ctx, account, path, &msg); err != nil {
		return nil, err
	}

	var attachments []mailbox.Attachment
	var walk func(part messagePart) error
	walk = func(part messagePart) error {
		if part.Filename != "" {
			data := part.Body.Data
			if data == "" && part.Body.AttachmentID != "" {
				attPath := path + "/attachments/" + url.PathEscape(part.Body.AttachmentID)
				var att attachmentResponse
				if err := c.doJSON(ctx, account, attPath, &att); err != nil {
					return err
				}
				data = att.Data
			}
			decoded, err := decodeBody(data)
			if err != nil {
				return fmt.Errorf("gmailapi: decode attachment %s: %w", part.Filename, err)
			}
			attachments = append(attachments, mailbox.Attachment{
				Filename: part.Filename,
				Data:     decoded,
				Size:     len(decoded),
			})
		}
		for _, child := range part.Parts {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(msg.Payload); err != nil {
		return nil, err
	}
	return attachments, nil
}

// decodeBody decodes a base64url body. The API documents unpadded
// output but padded payloads show up in the wild; stripping the
// padding first accepts both.
func decodeBody(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func (c *Client) doJSON(ctx context.Context, account, path string, out any) error {
	token, err := c.tokens.Token(ctx, account)
	if err != nil {
		return fmt.Errorf("gmailapi: token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gmailapi: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ mailbox.Mailbox = (*Client)(nil)
