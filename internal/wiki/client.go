package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const DefaultAPIURL = "https://en.wikipedia.org/w/api.php"

// Options configures the MediaWiki client
type Options struct {
	APIURL      string
	UserAgent   string
	Timeout     time.Duration
	Parallelism int
	Delay       time.Duration
}

// Client fetches topics from the MediaWiki parse API using a colly collector.
type Client struct {
	collector   *colly.Collector
	apiURL      *url.URL
	articleBase string
}

// NewClient creates a MediaWiki client. The collector is shared so request
// pacing applies across concurrent fetches.
func NewClient(opts Options) (*Client, error) {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}

	apiURL, err := url.Parse(opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if apiURL.Scheme == "" || apiURL.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: scheme and host are required", opts.APIURL)
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if opts.UserAgent != "" {
		collector.UserAgent = opts.UserAgent
	}
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.Parallelism,
		Delay:       opts.Delay,
	}); err != nil {
		return nil, fmt.Errorf("failed to set limit rule: %w", err)
	}

	return &Client{
		collector:   collector,
		apiURL:      apiURL,
		articleBase: apiURL.Scheme + "://" + apiURL.Host + "/wiki/",
	}, nil
}

// Fetch retrieves and normalizes a single topic
func (c *Client) Fetch(ctx context.Context, title string) (*TopicData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A clone gets its own callbacks but shares the HTTP backend and limits.
	col := c.collector.Clone()
	col.Context = ctx

	var (
		body   []byte
		status int
	)
	col.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := col.Visit(c.queryURL(title))
	logrus.Debugf("Fetched %q in %v (status=%d)", title, time.Since(start), status)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if status == http.StatusNotFound {
			return nil, &FetchError{Title: title, Kind: ErrNotFound, Err: err}
		}
		return nil, &FetchError{Title: title, Kind: ErrTransient, Err: err}
	}

	return parseResponse(title, body, c.articleBase)
}

func (c *Client) queryURL(title string) string {
	q := url.Values{}
	q.Set("action", "parse")
	q.Set("page", title)
	q.Set("prop", "text|categories|sections|properties")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")

	u := *c.apiURL
	u.RawQuery = q.Encode()
	return u.String()
}
