// Package notifier delivers new-listing notifications to the configured chat.
//
// Send is synchronous: the caller learns the outcome of the delivery attempt
// before moving on. Retry policy lives with the caller (the monitor marks an
// item seen after one attempt regardless, so a broken listing can never wedge
// the cycle into notifying it forever).
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"resaleradar/internal/source"
	kit "resaleradar/internal/transport"
	logx "resaleradar/pkg/logx"
)

type Config struct {
	Target     kit.ChatTarget
	RatePerSec int // default 1
}

// Notification is one new listing to announce.
type Notification struct {
	Item    source.Item
	Keyword string
}

// SendError reports a failed delivery for one item. Status is the transport
// status code when known (e.g. 429), else 0.
type SendError struct {
	Source string
	ItemID string
	Status int
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("notify %s/%s: %v", e.Source, e.ItemID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

type Service struct {
	adapter kit.Adapter
	log     logx.Logger

	mu      sync.Mutex
	target  kit.ChatTarget
	limiter *rate.Limiter
}

func New(adapter kit.Adapter, cfg Config, log logx.Logger) (*Service, error) {
	if adapter == nil {
		return nil, errors.New("notifier: adapter is nil")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.Apply(cfg)
	return s, nil
}

// Apply updates target and rate limit at runtime (config hot reload).
func (s *Service) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps < 1 {
		rps = 1
	}
	s.mu.Lock()
	s.target = cfg.Target
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	s.mu.Unlock()
}

// Send delivers one notification, waiting on the rate limiter first so bursts
// of new listings don't trip flood control.
func (s *Service) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	to := s.target
	lim := s.limiter
	s.mu.Unlock()

	// No recipient configured is a pause, not a failure: the caller treats the
	// attempt as made and moves on.
	if to.ChatID == 0 {
		s.log.Warn("no chat target configured; notification dropped",
			logx.String("source", n.Item.Source),
			logx.String("item", n.Item.ID),
		)
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return &SendError{Source: n.Item.Source, ItemID: n.Item.ID, Err: err}
	}

	text := FormatMessage(n)
	_, err := s.adapter.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: false})
	if err != nil {
		se := &SendError{Source: n.Item.Source, ItemID: n.Item.ID, Err: err}
		var st kit.StatusError
		if errors.As(err, &st) {
			se.Status = st.StatusCode()
		}
		return se
	}

	s.log.Info("notification sent",
		logx.String("source", n.Item.Source),
		logx.String("item", n.Item.ID),
		logx.String("keyword", n.Keyword),
	)
	return nil
}

// FormatMessage renders the listing announcement: header, title, price, URL.
func FormatMessage(n Notification) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(n.Item.Source))
	b.WriteString("] New listing")
	if n.Keyword != "" {
		b.WriteString(" for \"")
		b.WriteString(n.Keyword)
		b.WriteString("\"")
	}
	b.WriteString("\n\n")
	b.WriteString(n.Item.Title)
	b.WriteString("\n")
	if n.Item.Price > 0 {
		b.WriteString("¥")
		b.WriteString(groupThousands(n.Item.Price))
		b.WriteString("\n")
	}
	b.WriteString(n.Item.URL)
	return b.String()
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
