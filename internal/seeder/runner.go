package seeder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/acolyte/pkg/logger"
)

type runner struct {
	cfg    Config
	client *client
	gen    *generator
	log    logger.Logger
	stats  Stats

	moderator string
	names     []string
	claims    []submitted
}

type submitted struct {
	id          int64
	participant string
}

// Run seeds the API at cfg.BaseURL and verifies the resulting leaderboard.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	start := time.Now()
	r := &runner{
		cfg:    cfg,
		client: newClient(cfg.BaseURL, cfg.Timeout),
		gen:    newGenerator(cfg.Seed),
		log:    logger.Get().Named("seeder"),
	}
	r.log.Info(ctx, "seeding started",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("participants", cfg.Participants),
		logger.Int("days", cfg.Days),
		logger.Int("workers", cfg.Workers))

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"health check", r.checkHealth},
		{"participants", r.createParticipants},
		{"schedule and submissions", r.submit},
		{"moderation", r.moderate},
		{"verification", r.verify},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return r.stats, fmt.Errorf("%s failed: %w", step.name, err)
		}
	}

	r.stats.Duration = time.Since(start)
	r.log.Info(ctx, "seeding completed",
		logger.Int("claims", r.stats.ClaimsSubmitted),
		logger.Int("approved", r.stats.Approved),
		logger.Int("rejected", r.stats.Rejected),
		logger.Int("throttled", r.stats.ClaimsThrottled),
		logger.Duration("duration", r.stats.Duration))
	return r.stats, nil
}

func (r *runner) checkHealth(ctx context.Context) error {
	return r.client.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func (r *runner) createParticipants(ctx context.Context) error {
	names := r.gen.names(r.cfg.Participants + 1)
	r.moderator, r.names = "mod."+names[0], names[1:]

	put := func(name, role string) error {
		return r.client.do(ctx, http.MethodPut, "/participants/"+url.PathEscape(name), r.cfg.Admin,
			map[string]any{"role": role}, nil)
	}
	if err := put(r.moderator, "moderator"); err != nil {
		return err
	}
	for _, name := range r.names {
		if err := put(name, "participant"); err != nil {
			return err
		}
		r.stats.ParticipantsCreated++
	}
	return nil
}

// today asks the server for its calendar date so the schedule follows the server clock.
func (r *runner) today(ctx context.Context) (time.Time, error) {
	var res struct {
		Date string `json:"date"`
	}
	if err := r.client.do(ctx, http.MethodGet, "/season/check?date=today", "", nil, &res); err != nil {
		return time.Time{}, err
	}
	return time.Parse(dateLayout, res.Date)
}

func (r *runner) submit(ctx context.Context) error {
	today, err := r.today(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, r.cfg.Days)
	for _, e := range r.gen.schedule(today, r.cfg.Days) {
		var created struct {
			ID int64 `json:"id"`
		}
		if err := r.client.do(ctx, http.MethodPost, "/schedule", r.cfg.Admin, e, &created); err != nil {
			return err
		}
		ids = append(ids, created.ID)
	}
	r.stats.EventsScheduled = len(ids)

	subs := r.gen.submissions(r.names, ids, r.cfg.Attendance)
	r.log.Info(ctx, "submitting claims", logger.Int("claims", len(subs)), logger.Int("workers", r.cfg.Workers))

	var (
		submittedN, skipped, throttled, failed int64
		mu                                     sync.Mutex
		wg                                     sync.WaitGroup
	)
	jobs := make(chan submission, r.cfg.Workers*2)
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				var res struct {
					ClaimID int64 `json:"claim_id"`
					Skipped bool  `json:"skipped"`
				}
				err := r.client.do(ctx, http.MethodPost, "/claims/self", s.participant,
					map[string]any{"schedule_id": s.scheduleID, "notes": s.notes}, &res)
				var se *statusError
				switch {
				case errors.As(err, &se) && se.Status == http.StatusTooManyRequests:
					atomic.AddInt64(&throttled, 1)
				case err != nil:
					atomic.AddInt64(&failed, 1)
					r.log.Warn(ctx, "submission failed", logger.String("participant", s.participant), logger.Error(err))
				case res.Skipped:
					atomic.AddInt64(&skipped, 1)
				default:
					atomic.AddInt64(&submittedN, 1)
					mu.Lock()
					r.claims = append(r.claims, submitted{id: res.ClaimID, participant: s.participant})
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, s := range subs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- s:
		}
	}
	close(jobs)
	wg.Wait()

	r.stats.ClaimsSubmitted = int(submittedN)
	r.stats.ClaimsSkipped = int(skipped)
	r.stats.ClaimsThrottled = int(throttled)
	r.stats.ClaimsFailed = int(failed)
	return ctx.Err()
}

// moderate approves or rejects every claim this run created, one at a time.
func (r *runner) moderate(ctx context.Context) error {
	for _, c := range r.claims {
		action := "reject"
		if r.gen.chance(r.cfg.ApproveRatio) {
			action = "approve"
		}
		if err := r.client.do(ctx, http.MethodPost, "/claims/"+strconv.FormatInt(c.id, 10)+"/"+action, r.moderator, nil, nil); err != nil {
			return fmt.Errorf("%s claim %d: %w", action, c.id, err)
		}
		if action == "approve" {
			r.stats.Approved++
		} else {
			r.stats.Rejected++
		}
	}
	return nil
}
