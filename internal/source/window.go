package source

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/common"
	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// FetchFunc fetches and normalizes the raw payload for one bounded window.
type FetchFunc func(ctx context.Context, from, to time.Time) ([]model.Reading, error)

// Policy bounds a single series' fetch loop.
type Policy struct {
	// MaxWindow clamps a single probe; zero means unbounded.
	MaxWindow time.Duration

	// Throttle is the fixed sleep before every upstream call. It keeps the
	// call rate under the vendor ceiling and is not an error backoff.
	Throttle time.Duration

	// MaxCalls is the hard ceiling on fetch attempts per series, bounding
	// worst-case runtime in place of mid-fetch cancellation.
	MaxCalls int

	// CaughtUpUnder is the window width below which an empty probe means
	// the series has no more data to offer this run.
	CaughtUpUnder time.Duration
}

// Controller drives "fetch from watermark to now" for one series as a
// sequence of bounded windows.
type Controller struct {
	policy Policy
	now    func() time.Time
	sleep  func(time.Duration)
	log    *logrus.Entry
}

// NewController creates a controller with the given policy.
func NewController(policy Policy, log *logrus.Entry) *Controller {
	return &Controller{policy: policy, now: time.Now, sleep: time.Sleep, log: log}
}

// Sync fetches windows starting at the watermark until new readings are
// found, the series is caught up, or the call ceiling is hit. The first
// window that yields post-watermark readings ends the loop; empty windows
// narrower than CaughtUpUnder mean caught up, wider ones slide forward so a
// data-free gap is skipped instead of re-probed indefinitely.
func (c *Controller) Sync(ctx context.Context, seriesKey string, from time.Time, fetch FetchFunc) ([]model.Reading, error) {
	to := c.now().UTC()
	calls := 0

	for {
		// A watermark at or past the current time (clock skew, or a slide
		// that consumed the whole range) leaves nothing to fetch.
		if !from.Before(to) {
			c.log.WithField("series", seriesKey).Debug("watermark not behind current time, caught up")
			return nil, nil
		}

		if c.policy.MaxCalls > 0 && calls >= c.policy.MaxCalls {
			c.log.WithFields(logrus.Fields{"series": seriesKey, "calls": calls}).Warn("fetch ceiling reached, abandoning series until next run")
			return nil, nil
		}

		windowTo := to
		if c.policy.MaxWindow > 0 && windowTo.Sub(from) > c.policy.MaxWindow {
			windowTo = from.Add(c.policy.MaxWindow)
		}

		c.log.WithFields(logrus.Fields{"series": seriesKey, "from": from, "to": windowTo}).Info("querying window")

		c.sleep(c.policy.Throttle)
		readings, err := fetch(ctx, from, windowTo)
		calls++
		if err != nil {
			return nil, errors.Wrapf(err, "fetching %s window %s..%s", seriesKey,
				from.Format(time.RFC3339), windowTo.Format(time.RFC3339))
		}

		// Upstream may return boundary-inclusive data we have already seen.
		if fresh := NewRecords(readings, from); len(fresh) > 0 {
			return fresh, nil
		}

		if windowTo.Sub(from) < c.policy.CaughtUpUnder {
			c.log.WithField("series", seriesKey).Debug("caught up")
			return nil, nil
		}

		// Slide over the data-free gap.
		from = windowTo
		to = c.now().UTC()
	}
}

// NewRecords filters readings down to those strictly after the watermark.
func NewRecords(readings []model.Reading, watermark time.Time) []model.Reading {
	fresh := readings[:0:0]
	for _, r := range readings {
		if r.Meta().Timestamp.After(watermark) {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

// FlushFunc persists a partial result set mid-pagination.
type FlushFunc func(ctx context.Context, readings []model.Reading) error

// DayPager drives sources whose vendor only serves one calendar day per
// request under a strict rate limit. Unlike Controller it keeps paging past
// days that yield data, flushes partial results every FlushEvery calls so a
// crash does not lose progress, and stops hard at the call ceiling.
type DayPager struct {
	policy     Policy
	flushEvery int
	flush      FlushFunc
	now        func() time.Time
	sleep      func(time.Duration)
	log        *logrus.Entry
}

// NewDayPager creates a pager; flush is invoked every flushEvery calls and
// once more for any remainder.
func NewDayPager(policy Policy, flushEvery int, flush FlushFunc, log *logrus.Entry) *DayPager {
	return &DayPager{
		policy:     policy,
		flushEvery: flushEvery,
		flush:      flush,
		now:        time.Now,
		sleep:      time.Sleep,
		log:        log,
	}
}

// Sync pages one calendar day at a time from the watermark's day up to
// today. Everything fetched is flushed by the time Sync returns, including
// when the call ceiling cuts the run short. The returned slice holds all
// post-watermark readings fetched this run.
func (p *DayPager) Sync(ctx context.Context, seriesKey string, watermark time.Time, fetch FetchFunc) ([]model.Reading, error) {
	var all, pending []model.Reading
	day := common.DayStart(watermark)
	calls := 0

	for !day.After(p.now().UTC()) {
		if p.policy.MaxCalls > 0 && calls >= p.policy.MaxCalls {
			p.log.WithFields(logrus.Fields{"series": seriesKey, "calls": calls}).Warn("daily call ceiling reached, stopping until next run")
			break
		}

		p.sleep(p.policy.Throttle)
		readings, err := fetch(ctx, day, day.AddDate(0, 0, 1))
		calls++
		if err != nil {
			// Keep what we already fetched; the watermark resumes from it.
			if flushErr := p.flushPending(ctx, pending); flushErr != nil {
				p.log.WithError(flushErr).Error("flush of partial results failed")
			}
			return all, errors.Wrapf(err, "fetching %s for %s", seriesKey, day.Format("2006-01-02"))
		}

		fresh := NewRecords(readings, watermark)
		pending = append(pending, fresh...)
		all = append(all, fresh...)

		if p.flushEvery > 0 && calls%p.flushEvery == 0 {
			if err := p.flushPending(ctx, pending); err != nil {
				return all, err
			}
			pending = nil
		}

		day = day.AddDate(0, 0, 1)
	}

	if err := p.flushPending(ctx, pending); err != nil {
		return all, err
	}
	return all, nil
}

func (p *DayPager) flushPending(ctx context.Context, pending []model.Reading) error {
	if len(pending) == 0 {
		return nil
	}
	p.log.WithField("count", len(pending)).Info("flushing partial results")
	return p.flush(ctx, pending)
}
