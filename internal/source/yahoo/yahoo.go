// Package yahoo implements the Yahoo! Auctions listing source.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"resaleradar/internal/source"
	logx "resaleradar/pkg/logx"
)

const Name = "yahoo"

const defaultBaseURL = "https://auctions.yahoo.co.jp"

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls the collector.
type Config struct {
	BaseURL   string // override for tests; default is the live site
	UserAgent string
	Timeout   time.Duration
	PageSize  int // results per search, default 50
}

type Adapter struct {
	cfg  Config
	base *colly.Collector
	log  logx.Logger
}

var (
	itemIDRe = regexp.MustCompile(`/auction/([a-z0-9]+)`)
	priceRe  = regexp.MustCompile(`[¥￥]\s*([\d,]+)`)
)

func New(cfg Config, log logx.Logger) *Adapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)

	return &Adapter{cfg: cfg, base: c, log: log}
}

func (a *Adapter) Name() string { return Name }

// ExtractID pulls the auction id out of a listing URL
// (format: .../jp/auction/<id>).
func (a *Adapter) ExtractID(rawURL string) string {
	m := itemIDRe.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Search fetches the first result page for keyword.
//
// Parsing is two-stage: the structured Product cards first, then a generic
// auction-anchor scan as a fallback for layout changes.
func (a *Adapter) Search(ctx context.Context, keyword string) ([]source.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("va", keyword)
	q.Set("exflg", "1")
	q.Set("b", "1")
	q.Set("n", strconv.Itoa(a.cfg.PageSize))
	searchURL := a.cfg.BaseURL + "/search/search?" + q.Encode()

	var (
		primary  []source.Item
		fallback []source.Item
		sawHTML  bool
		fetchErr error
	)

	c := a.base.Clone()
	c.UserAgent = a.cfg.UserAgent
	c.SetRequestTimeout(a.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if status > 0 {
			err = fmt.Errorf("status %d: %w", status, err)
		}
		fetchErr = err
	})
	c.OnResponse(func(r *colly.Response) {
		ct := strings.ToLower(r.Headers.Get("Content-Type"))
		if strings.Contains(ct, "html") {
			sawHTML = true
		}
	})

	// Stage 1: structured result cards.
	c.OnHTML("li.Product, div.Product", func(e *colly.HTMLElement) {
		link := e.DOM.Find("a.Product__titleLink").First()
		if link.Length() == 0 {
			link = e.DOM.Find("h3 a").First()
		}
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		abs := e.Request.AbsoluteURL(href)

		price := 0
		if pv := e.DOM.Find("span.Product__priceValue").First(); pv.Length() > 0 {
			price = parsePrice(pv.Text())
		}
		if price == 0 {
			price = parsePrice(e.DOM.Text())
		}

		primary = append(primary, source.Item{
			Source: Name,
			ID:     a.ExtractID(abs),
			Title:  title,
			Price:  price,
			URL:    abs,
		})
	})

	// Stage 2: any auction link on the page.
	c.OnHTML(`a[href*="/auction/"]`, func(e *colly.HTMLElement) {
		if len(fallback) >= a.cfg.PageSize {
			return
		}
		title := strings.TrimSpace(e.Text)
		if title == "" {
			return
		}
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		id := a.ExtractID(abs)
		if id == "" {
			return
		}
		fallback = append(fallback, source.Item{
			Source: Name,
			ID:     id,
			Title:  title,
			Price:  parsePrice(e.DOM.Parent().Text()),
			URL:    abs,
		})
	})

	if err := c.Visit(searchURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		return nil, &source.FetchError{Source: Name, Keyword: keyword, Err: fetchErr}
	}
	if !sawHTML {
		return nil, &source.ParseError{Source: Name, Keyword: keyword, Err: errors.New("response is not HTML")}
	}

	items := primary
	if len(items) == 0 {
		items = dedupeByID(fallback)
	}
	a.log.Debug("search done",
		logx.String("keyword", keyword),
		logx.Int("items", len(items)),
		logx.Bool("fallback", len(primary) == 0 && len(items) > 0),
	)
	return items, nil
}

func dedupeByID(items []source.Item) []source.Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func parsePrice(text string) int {
	m := priceRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}
