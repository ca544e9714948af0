package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/telemetry"
)

const (
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) skilldesk"
	referer   = "https://quote.eastmoney.com/"
)

// Client implements Provider over the Eastmoney HTTP API
type Client struct {
	cfg    config.DataSourceConfig
	http   *http.Client
	tables *expirable.LRU[string, []row]
	pages  *expirable.LRU[string, industryPage]
	now    func() time.Time
}

var _ Provider = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithClock sets the clock used for snapshot timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client. A zero CacheTTL disables caching.
func NewClient(cfg config.DataSourceConfig, opts ...Option) *Client {
	if cfg.RetryTimes == 0 {
		cfg.RetryTimes = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
	if cfg.CacheTTL > 0 {
		c.tables = expirable.NewLRU[string, []row](cfg.CacheSize, nil, cfg.CacheTTL)
		c.pages = expirable.NewLRU[string, industryPage](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with retries, tracing and metrics and returns the body
func (c *Client) get(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body []byte
	started := time.Now()
	err := telemetry.WithSpan(ctx, "quotes."+op, func(ctx context.Context) error {
		return retry.Do(
			func() error {
				b, err := c.fetch(ctx, u)
				if err != nil {
					return err
				}
				body = b
				return nil
			},
			retry.Attempts(c.cfg.RetryTimes),
			retry.Delay(c.cfg.RetryDelay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				logger.G(ctx).WithError(err).
					WithField("operation", op).
					WithField("attempt", n+1).
					WithField("max_attempts", c.cfg.RetryTimes).
					Warn("retrying market data request")
			}),
		)
	}, attribute.String("quotes.operation", op), attribute.String("http.url", endpoint))
	telemetry.ObserveQuoteRequest(op, started, err)

	if err != nil {
		return nil, errors.Wrapf(err, "%s failed", op)
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Unrecoverable(errors.Wrap(err, "failed to build request"))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, retry.Unrecoverable(errors.Errorf("unexpected status %d", resp.StatusCode))
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	body, err := c.get(ctx, op, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", op)
	}
	return nil
}

// cached returns the table stored under key, fetching it on a miss
func (c *Client) cached(ctx context.Context, key string, fetch func(context.Context) ([]row, error)) ([]row, error) {
	if c.tables != nil {
		if rows, ok := c.tables.Get(key); ok {
			telemetry.ObserveCacheLookup(key, true)
			return rows, nil
		}
		telemetry.ObserveCacheLookup(key, false)
	}

	rows, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if c.tables != nil {
		c.tables.Add(key, rows)
	}
	return rows, nil
}

// fetchPages fetches pages 2..pages concurrently and returns them in page order
func (c *Client) fetchPages(ctx context.Context, pages int, fetch func(ctx context.Context, page int) ([]row, error)) ([]row, error) {
	if pages <= 1 {
		return nil, nil
	}

	results := make([][]row, pages+1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for page := 2; page <= pages; page++ {
		g.Go(func() error {
			rows, err := fetch(ctx, page)
			if err != nil {
				return errors.Wrapf(err, "page %d", page)
			}
			results[page] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []row
	for _, rows := range results[2:] {
		all = append(all, rows...)
	}
	return all, nil
}

type clistResponse struct {
	Data *struct {
		Total int   `json:"total"`
		Diff  []row `json:"diff"`
	} `json:"data"`
}

// clist reads every page of a push2 list query
func (c *Client) clist(ctx context.Context, op string, params url.Values) ([]row, error) {
	endpoint := c.cfg.BaseURL + "/api/qt/clist/get"
	pageSize := c.cfg.PageSize

	page := func(ctx context.Context, pn int) ([]row, int, error) {
		p := url.Values{}
		for k, v := range params {
			p[k] = v
		}
		p.Set("pn", fmt.Sprint(pn))
		p.Set("pz", fmt.Sprint(pageSize))
		p.Set("np", "1")
		p.Set("fltt", "2")
		p.Set("invt", "2")

		var resp clistResponse
		if err := c.getJSON(ctx, op, endpoint, p, &resp); err != nil {
			return nil, 0, err
		}
		if resp.Data == nil {
			return nil, 0, nil
		}
		return resp.Data.Diff, resp.Data.Total, nil
	}

	first, total, err := page(ctx, 1)
	if err != nil {
		return nil, err
	}
	pages := (total + pageSize - 1) / pageSize
	rest, err := c.fetchPages(ctx, pages, func(ctx context.Context, pn int) ([]row, error) {
		rows, _, err := page(ctx, pn)
		return rows, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed", op)
	}
	return append(first, rest...), nil
}
