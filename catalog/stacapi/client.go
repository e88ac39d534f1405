package stacapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/lib/retry"
)

const (
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second
	// maxErrorBody bounds how much of an error response is logged.
	maxErrorBody = 512
)

// Client talks to a STAC API implementing the transaction extension.
type Client struct {
	logger   *logrus.Logger
	baseURL  *url.URL
	cli      *http.Client
	policy   retry.Policy
	pageSize int
}

type Option func(c *Client)

func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		c.cli = cli
	}
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.cli.Timeout = d
		}
	}
}

func NewClient(logger *logrus.Logger, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		logger:  logger,
		baseURL: u,
		cli: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		policy:   retry.DefaultPolicy(),
		pageSize: defaultPageSize,
	}
	for opt := range slices.Values(opts) {
		opt(c)
	}
	c.policy.Retryable = func(err error) bool {
		return errors.Is(err, catalog.ErrTransient)
	}

	return c, nil
}

// Ping fetches the landing page to make sure the catalog is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, c.baseURL.String(), nil, "Ping")
	if err != nil {
		return fmt.Errorf("catalog is not reachable: %w", err)
	}
	if resp.status != http.StatusOK {
		return c.unexpected("Ping", resp)
	}
	return nil
}

func (c *Client) GetItem(ctx context.Context, collection, id string) (*catalog.Item, error) {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, c.itemURL(collection, id), nil, "GetItem")
	if err != nil {
		return nil, fmt.Errorf("failed to get item with retrying: %w", err)
	}

	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s/%s: %w", collection, id, catalog.ErrNotFound)
	default:
		return nil, c.unexpected("GetItem", resp)
	}

	var item catalog.Item
	err = json.Unmarshal(resp.body, &item)
	if err != nil {
		return nil, fmt.Errorf("json decode item: %w", err)
	}
	if item.Collection == "" {
		item.Collection = collection
	}

	return &item, nil
}

// UpsertItem replaces the item with PUT and falls back to creating it with POST when the item does not exist.
func (c *Client) UpsertItem(ctx context.Context, item *catalog.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("json encode item: %w", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPut, c.itemURL(item.Collection, item.ID), body, "UpsertItem")
	if err != nil {
		return fmt.Errorf("failed to put item with retrying: %w", err)
	}
	switch resp.status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusMethodNotAllowed:
	default:
		return c.unexpected("UpsertItem", resp)
	}

	c.logger.WithContext(ctx).WithField("item_id", item.ID).Debug("Item cannot be replaced, creating it")
	resp, err = c.doRequestWithRetry(ctx, http.MethodPost, c.itemsURL(item.Collection), body, "CreateItem")
	if err != nil {
		return fmt.Errorf("failed to create item with retrying: %w", err)
	}
	switch resp.status {
	case http.StatusOK, http.StatusCreated:
		return nil
	default:
		return c.unexpected("CreateItem", resp)
	}
}

func (c *Client) DeleteItem(ctx context.Context, collection, id string) error {
	resp, err := c.doRequestWithRetry(ctx, http.MethodDelete, c.itemURL(collection, id), nil, "DeleteItem")
	if err != nil {
		return fmt.Errorf("failed to delete item with retrying: %w", err)
	}

	switch resp.status {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s/%s: %w", collection, id, catalog.ErrNotFound)
	default:
		return c.unexpected("DeleteItem", resp)
	}
}

// ListItems returns one page of the collection. The token is the "next" link of the previous page.
func (c *Client) ListItems(ctx context.Context, collection, token string) (*catalog.ItemPage, error) {
	u := token
	if u == "" {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		u = c.itemsURL(collection) + "?" + q.Encode()
	} else {
		ref, err := url.Parse(token)
		if err != nil {
			return nil, fmt.Errorf("invalid page token: %w", err)
		}
		u = c.baseURL.ResolveReference(ref).String()
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, u, nil, "ListItems")
	if err != nil {
		return nil, fmt.Errorf("failed to list items with retrying: %w", err)
	}
	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("collection %q: %w", collection, catalog.ErrNotFound)
	default:
		return nil, c.unexpected("ListItems", resp)
	}

	type Link struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	}
	type Response struct {
		Features []*catalog.Item `json:"features"`
		Links    []Link          `json:"links"`
	}

	var response Response
	err = json.Unmarshal(resp.body, &response)
	if err != nil {
		return nil, fmt.Errorf("json decode items: %w", err)
	}

	page := &catalog.ItemPage{
		Items: response.Features,
	}
	for _, item := range page.Items {
		if item != nil && item.Collection == "" {
			item.Collection = collection
		}
	}
	for _, l := range response.Links {
		if l.Rel == "next" && l.Href != "" {
			page.NextToken = l.Href
			break
		}
	}
	// a next link pointing at the page just fetched would loop forever
	if page.NextToken == token && token != "" {
		page.NextToken = ""
	}

	return page, nil
}

func (c *Client) itemsURL(collection string) string {
	return c.baseURL.JoinPath("collections", collection, "items").String()
}

func (c *Client) itemURL(collection, id string) string {
	return c.baseURL.JoinPath("collections", collection, "items", id).String()
}

type response struct {
	status int
	body   []byte
}

// doRequestWithRetry sends the request, retrying transport errors, throttling and server errors.
// Authorization failures end the retries. Any other status is returned to the caller.
func (c *Client) doRequestWithRetry(ctx context.Context, method, u string, body []byte, op string) (*response, error) {
	logger := c.logger.WithContext(ctx).WithField("op", op)

	return retry.Value(ctx, c.policy, func(ctx context.Context) (*response, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil {
			return nil, fmt.Errorf("could not create request: %w", err)
		}
		req.Header.Set("Accept", "application/geo+json, application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.cli.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("could not make http call: %w", err)
			}
			var netErr net.Error
			if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.WithError(err).Warn("Failed to make http request, retrying...")
				return nil, fmt.Errorf("%w: http request failed: %w", catalog.ErrTransient, err)
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read response body: %w", catalog.ErrTransient, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s %s: %s", catalog.ErrAccessDenied, method, u, resp.Status)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			logger.WithField("status", resp.StatusCode).Warn("Catalog request failed, retrying...")
			return nil, fmt.Errorf("%w: %s %s: %s", catalog.ErrTransient, method, u, resp.Status)
		}

		return &response{status: resp.StatusCode, body: data}, nil
	})
}

func (c *Client) unexpected(op string, resp *response) error {
	body := resp.body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	c.logger.WithFields(logrus.Fields{
		"op":     op,
		"status": resp.status,
		"resp":   fmt.Sprintf("%q", string(body)),
	}).Error("Catalog request failed with unexpected status code")

	return fmt.Errorf("%s failed: unexpected status %d", op, resp.status)
}
