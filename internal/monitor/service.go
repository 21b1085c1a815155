// Package monitor runs the polling engine: on every trigger it searches each
// enabled source for its keywords, filters and deduplicates the hits, and
// pushes notifications for listings not seen before.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"resaleradar/internal/eventbus"
	"resaleradar/internal/notifier"
	"resaleradar/internal/seenstore"
	"resaleradar/internal/source"
	logx "resaleradar/pkg/logx"
)

// Notifier is the delivery boundary the monitor depends on.
type Notifier interface {
	Send(ctx context.Context, n notifier.Notification) error
}

type Service struct {
	log      logx.Logger
	bus      eventbus.Bus
	registry *source.Registry
	store    seenstore.Store
	notif    Notifier

	mu        sync.Mutex
	cfg       Config
	retention time.Duration
	history   []CycleResult

	// cycleMu serializes cycles: a manual trigger can never overlap a
	// scheduled one.
	cycleMu sync.Mutex

	wake   chan struct{} // config changed; recompute the next trigger
	manual chan struct{} // run a cycle now
}

func New(registry *source.Registry, store seenstore.Store, notif Notifier, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log,
		bus:      bus,
		registry: registry,
		store:    store,
		notif:    notif,
		wake:     make(chan struct{}, 1),
		manual:   make(chan struct{}, 1),
	}
}

// Apply swaps the monitor configuration and wakes the loop so the new
// schedule takes effect without waiting out the old interval.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.signal(s.wake)
}

// SetRetention sets the seen-record prune window (0 disables pruning).
func (s *Service) SetRetention(d time.Duration) {
	s.mu.Lock()
	s.retention = d
	s.mu.Unlock()
}

// RunNow requests an immediate cycle outside the schedule.
func (s *Service) RunNow() { s.signal(s.manual) }

func (s *Service) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Drain waits for an in-flight cycle to finish (or ctx to expire). Used
// during shutdown so the store is closed only after the last cycle let go.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.cycleMu.Lock()
		defer s.cycleMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History returns a copy of the bounded cycle history, newest last.
func (s *Service) History() []CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CycleResult, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Run drives the schedule until ctx is canceled. When enabled, a first cycle
// runs immediately on start; afterwards the loop sleeps until the next
// trigger, with the sleep cut short by shutdown, reload, or RunNow.
func (s *Service) Run(ctx context.Context) error {
	ranInitial := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		cfg := s.snapshot()
		if !cfg.Enabled {
			ranInitial = false
			s.log.Debug("monitor disabled; waiting for config change")
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		raw := strings.TrimSpace(cfg.Schedule)
		if raw == "" {
			raw = DefaultSchedule
		}
		spec, err := ParseSchedule(raw)
		if err != nil {
			s.log.Error("invalid schedule; monitor idle until config change", logx.String("schedule", raw), logx.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		if !ranInitial {
			ranInitial = true
			s.executeCycle(ctx)
			continue
		}

		trig, err := spec.Trigger()
		if err != nil {
			s.log.Error("schedule trigger build failed", logx.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
			}
			continue
		}

		now := time.Now()
		if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
			if loc, lerr := time.LoadLocation(tz); lerr == nil {
				now = now.In(loc)
			} else {
				s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(lerr))
			}
		}
		next := trig.Next(now)
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		s.log.Debug("next cycle scheduled", logx.Time("at", next), logx.Duration("in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.wake:
			timer.Stop()
			continue
		case <-s.manual:
			timer.Stop()
			s.executeCycle(ctx)
		case <-timer.C:
			s.executeCycle(ctx)
		}
	}
}

func (s *Service) executeCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		s.log.Warn("cycle already running; trigger skipped")
		return
	}
	defer s.cycleMu.Unlock()

	cfg := s.snapshot()
	res := s.runCycle(ctx, cfg)

	s.mu.Lock()
	max := cfg.HistorySize
	if max <= 0 {
		max = DefaultHistorySize
	}
	s.history = append(s.history, res)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	retention := s.retention
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: EventCycleDone, Data: res})
	}

	if res.Err != "" {
		s.log.Error("cycle aborted", logx.String("err", res.Err), logx.Duration("took", res.Took))
	} else {
		notified, failed, filtered := 0, 0, 0
		for _, sr := range res.Sources {
			for _, kr := range sr.Keywords {
				notified += kr.Notified
				failed += kr.Failed
				filtered += kr.Filtered
			}
		}
		s.log.Info("cycle done",
			logx.Int("sources", len(res.Sources)),
			logx.Int("notified", notified),
			logx.Int("failed", failed),
			logx.Int("filtered", filtered),
			logx.Duration("took", res.Took),
		)
	}

	if retention > 0 && res.Err == "" {
		cutoff := time.Now().Add(-retention)
		if n, err := s.store.PruneBefore(ctx, cutoff); err != nil {
			s.log.Warn("retention prune failed", logx.Err(err))
		} else if n > 0 {
			s.log.Debug("retention pruned", logx.Int("removed", n))
		}
	}
}
