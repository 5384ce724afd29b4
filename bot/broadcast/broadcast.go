// Package broadcast fans a message out to every member of an audience
// group and summarizes the outcome.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"herald/bot/directory"
	"herald/core/logger"
)

// DMSender delivers one private message. Implementations make exactly
// one attempt; retrying is the transport's business, not ours.
type DMSender interface {
	SendDM(ctx context.Context, userID int64, text string) error
}

// Options tune the fan-out. Zero values fall back to defaults.
type Options struct {
	Workers    int
	RatePerSec float64
}

// Result is the outcome of one fan-out. Delivered and Failed preserve
// the member order of the input list; Skipped counts bot accounts that
// never got a send attempt.
type Result struct {
	Delivered []directory.Member
	Failed    []directory.Member
	Skipped   int
	Elapsed   time.Duration
}

// Service runs broadcasts against a DMSender.
type Service struct {
	sender  DMSender
	workers int
	limiter *rate.Limiter
}

func NewService(sender DMSender, opts Options) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	rp := opts.RatePerSec
	if rp <= 0 {
		rp = 25
	}
	return &Service{
		sender:  sender,
		workers: workers,
		limiter: rate.NewLimiter(rate.Limit(rp), 1),
	}
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeDelivered
	outcomeFailed
	outcomeSkipped
)

// Run sends text to every non-bot member concurrently and waits for
// all sends to finish. A failed send never aborts the batch.
func (s *Service) Run(ctx context.Context, members []directory.Member, text string) Result {
	start := time.Now()
	outcomes := make([]outcome, len(members))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.workers
	if workers > len(members) {
		workers = len(members)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.sendOne(ctx, members[i], text)
			}
		}()
	}

	for i, m := range members {
		if m.IsBot {
			outcomes[i] = outcomeSkipped
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	res := Result{Elapsed: time.Since(start)}
	for i, o := range outcomes {
		switch o {
		case outcomeDelivered:
			res.Delivered = append(res.Delivered, members[i])
		case outcomeFailed, outcomePending:
			res.Failed = append(res.Failed, members[i])
		case outcomeSkipped:
			res.Skipped++
		}
	}

	attrs := []slog.Attr{
		slog.Int("recipients", len(members)),
		slog.Int("delivered", len(res.Delivered)),
		slog.Int("failed", len(res.Failed)),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", logger.RoundMS(res.Elapsed)),
	}
	if len(res.Failed) > 0 {
		logger.Warn(ctx, "service.broadcast", "fanout.finished_with_failures", attrs...)
	} else {
		logger.Info(ctx, "service.broadcast", "fanout.finished", attrs...)
	}
	return res
}

func (s *Service) sendOne(ctx context.Context, m directory.Member, text string) outcome {
	if err := s.limiter.Wait(ctx); err != nil {
		logger.Warn(ctx, "service.broadcast", "fanout.aborted",
			slog.Int64("user_id", m.UserID),
			slog.Any("err", err),
		)
		return outcomeFailed
	}
	if err := s.sender.SendDM(ctx, m.UserID, text); err != nil {
		logger.Warn(ctx, "service.broadcast", "fanout.send_failed",
			slog.Int64("user_id", m.UserID),
			slog.Any("err", err),
		)
		return outcomeFailed
	}
	return outcomeDelivered
}
