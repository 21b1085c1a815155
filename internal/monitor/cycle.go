package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"resaleradar/internal/eventbus"
	"resaleradar/internal/notifier"
	"resaleradar/internal/seenstore"
	"resaleradar/internal/source"
	logx "resaleradar/pkg/logx"
)

// runCycle executes one monitoring pass over all configured sources.
//
// Sources run in parallel workers; keywords within a source run in order,
// paced by a shared request limiter. A store IO failure aborts the whole
// cycle (the seen set can't be trusted mid-failure), but never the process:
// the next trigger starts fresh.
func (s *Service) runCycle(ctx context.Context, cfg Config) CycleResult {
	started := time.Now()
	res := CycleResult{Started: started}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: EventCycleStart})
	}

	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = DefaultRequestInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]SourceResult, len(cfg.Sources))
	var (
		wg       sync.WaitGroup
		fatalMu  sync.Mutex
		fatalErr error
	)
	recordFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel()
	}

	for i, job := range cfg.Sources {
		adapter, ok := s.registry.Get(job.Name)
		if !ok {
			results[i] = SourceResult{Source: job.Name, Err: "no adapter registered"}
			s.log.Warn("source has no adapter; skipped", logx.String("source", job.Name))
			continue
		}

		wg.Add(1)
		go func(i int, job SourceJob, adapter source.Adapter) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = SourceResult{
						Source: job.Name,
						Err:    fmt.Sprintf("panic: %v", r),
					}
					s.log.Error("source worker panicked",
						logx.String("source", job.Name),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
				}
			}()

			sr, err := s.runSource(cctx, adapter, job, limiter)
			results[i] = sr
			if err != nil {
				recordFatal(err)
			}
		}(i, job, adapter)
	}
	wg.Wait()

	res.Sources = results
	res.Took = time.Since(started)
	if fatalErr != nil {
		res.Err = fatalErr.Error()
	}
	return res
}

func (s *Service) runSource(ctx context.Context, adapter source.Adapter, job SourceJob, limiter *rate.Limiter) (SourceResult, error) {
	start := time.Now()
	out := SourceResult{Source: job.Name}
	log := s.log.With(logx.String("source", job.Name))

	defer func() {
		out.Took = time.Since(start)
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: EventSourceDone, Data: out})
		}
	}()

	// Seeding is decided once per cycle, before any keyword runs: an empty
	// store for this source means first deployment, and the whole result set
	// becomes baseline instead of a notification storm.
	seeding := false
	if job.SeedOnFirstRun {
		n, err := s.store.CountBySource(ctx, job.Name)
		if err != nil {
			out.Err = err.Error()
			return out, storeFatal(err)
		}
		seeding = n == 0
		if seeding {
			log.Info("first run for source; seeding baseline without notifications")
		}
	}

	for _, kw := range job.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		kr, err := s.runKeyword(ctx, adapter, job, kw, seeding, log)
		out.Keywords = append(out.Keywords, kr)
		if err != nil {
			out.Err = err.Error()
			return out, err
		}
	}
	return out, nil
}

// runKeyword processes one keyword search end to end. The returned error is
// non-nil only for store IO failures, which abort the cycle.
func (s *Service) runKeyword(ctx context.Context, adapter source.Adapter, job SourceJob, kw string, seeding bool, log logx.Logger) (KeywordResult, error) {
	kr := KeywordResult{Keyword: kw}

	items, err := adapter.Search(ctx, kw)
	if err != nil {
		kr.Err = err.Error()
		var fe *source.FetchError
		var pe *source.ParseError
		switch {
		case errors.As(err, &fe):
			log.Warn("search fetch failed", logx.String("keyword", kw), logx.Err(err))
		case errors.As(err, &pe):
			log.Warn("search parse failed", logx.String("keyword", kw), logx.Err(err))
		case errors.Is(err, context.Canceled):
			// shutdown or cycle abort; nothing to report
		default:
			log.Warn("search failed", logx.String("keyword", kw), logx.Err(err))
		}
		return kr, nil
	}
	kr.Found = len(items)

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}

		id := it.ID
		if id == "" {
			id = adapter.ExtractID(it.URL)
		}
		if id == "" {
			log.Debug("item without id skipped", logx.String("url", it.URL))
			continue
		}

		if seeding {
			if err := s.store.MarkSeen(ctx, job.Name, id, time.Now()); err != nil {
				kr.Err = err.Error()
				return kr, storeFatal(err)
			}
			kr.Seeded++
			continue
		}

		// Price floor comes before dedup: a listing below the threshold is
		// never marked seen, so a later price edit above the floor still
		// notifies.
		if job.MinPrice > 0 && it.Price < job.MinPrice {
			kr.Filtered++
			continue
		}

		seen, err := s.store.Has(ctx, job.Name, id)
		if err != nil {
			kr.Err = err.Error()
			return kr, storeFatal(err)
		}
		if seen {
			continue
		}
		kr.Fresh++

		sendErr := s.notif.Send(ctx, notifier.Notification{Item: it, Keyword: kw})

		// Marked seen after the attempt no matter how it went: a listing
		// that fails to deliver must not be retried on every future cycle.
		if merr := s.store.MarkSeen(ctx, job.Name, id, time.Now()); merr != nil {
			kr.Err = merr.Error()
			return kr, storeFatal(merr)
		}

		if sendErr != nil {
			kr.Failed++
			if !errors.Is(sendErr, context.Canceled) {
				log.Warn("notification failed",
					logx.String("keyword", kw),
					logx.String("item", id),
					logx.Err(sendErr),
				)
			}
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: EventNotifyFail, Data: map[string]string{
					"source": job.Name, "item": id, "keyword": kw,
				}})
			}
			continue
		}
		kr.Notified++
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: EventNotified, Data: map[string]string{
				"source": job.Name, "item": id, "keyword": kw,
			}})
		}
	}

	log.Debug("keyword done",
		logx.String("keyword", kw),
		logx.Int("found", kr.Found),
		logx.Int("filtered", kr.Filtered),
		logx.Int("fresh", kr.Fresh),
		logx.Int("notified", kr.Notified),
		logx.Int("failed", kr.Failed),
		logx.Int("seeded", kr.Seeded),
	)
	return kr, nil
}

// storeFatal tags a store failure as cycle-fatal. Non-IO errors (context
// cancellation during shutdown) pass through untagged.
func storeFatal(err error) error {
	var ioe *seenstore.IOError
	if errors.As(err, &ioe) {
		return fmt.Errorf("seen store unavailable: %w", err)
	}
	return err
}
