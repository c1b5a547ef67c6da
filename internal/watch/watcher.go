package watch

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"certfresh/internal/freshness"
	"certfresh/internal/metrics"
	"certfresh/internal/models"
)

// Watcher re-checks a fixed list of hostnames on an interval, keeps the
// results in the database and alerts once a host has been not fresh for
// AlertThreshold checks in a row. Hosts that cannot be reached are recorded
// but never alert.
type Watcher struct {
	DB             *sql.DB
	Prober         freshness.Prober
	Hostnames      []string
	ThresholdDays  int
	Interval       time.Duration
	AlertThreshold int
	// Retention is how long check records are kept. Zero keeps everything.
	Retention   time.Duration
	Concurrency int
	Notifier    Notifier
	Metrics     *metrics.Collector
	Log         logrus.FieldLogger
	Now         func() time.Time

	failures map[string]int
	alerted  map[string]bool
	mu       sync.Mutex
}

func NewWatcher(db *sql.DB, p freshness.Prober, hostnames []string, interval time.Duration, alertThreshold int, log logrus.FieldLogger) *Watcher {
	if alertThreshold <= 0 {
		alertThreshold = 1
	}
	return &Watcher{
		DB:             db,
		Prober:         p,
		Hostnames:      hostnames,
		ThresholdDays:  freshness.DefaultThresholdDays,
		Interval:       interval,
		AlertThreshold: alertThreshold,
		Concurrency:    4,
		Log:            log,
		Now:            time.Now,
		failures:       make(map[string]int),
		alerted:        make(map[string]bool),
	}
}

// Start runs one round immediately, then one per Interval until ctx ends.
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.log().WithFields(logrus.Fields{
		"hostnames": len(w.Hostnames),
		"interval":  w.Interval.String(),
	}).Info("certificate watcher started")

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log().Info("certificate watcher stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce prunes old records and checks every hostname, returning when all
// checks are done.
func (w *Watcher) RunOnce(ctx context.Context) {
	if w.Retention > 0 && w.DB != nil {
		n, err := models.PruneCheckRecords(w.DB, w.now().Add(-w.Retention))
		if err != nil {
			w.log().WithError(err).Error("failed to prune check records")
		} else if n > 0 {
			w.log().WithField("deleted", n).Debug("pruned check records")
		}
	}

	g := new(errgroup.Group)
	if w.Concurrency > 0 {
		g.SetLimit(w.Concurrency)
	}
	for _, hostname := range w.Hostnames {
		g.Go(func() error {
			w.checkHost(ctx, hostname)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Watcher) checkHost(ctx context.Context, hostname string) {
	req := freshness.Request{Hostname: hostname, ThresholdDays: w.ThresholdDays}
	entry := w.log().WithField("hostname", hostname)

	start := time.Now()
	v, err := w.Prober.Check(ctx, req)
	duration := time.Since(start)

	rec := &models.CheckRecord{
		Hostname:      hostname,
		ThresholdDays: w.ThresholdDays,
		DurationMs:    duration.Milliseconds(),
	}

	if err != nil {
		rec.Status = models.StatusTransportError
		rec.Reason = string(freshness.FailureReason(err))
		rec.CheckedAt = models.FormatTime(w.now())
		w.save(entry, rec)
		entry.WithError(err).Warn("watched host unreachable")
		return
	}

	rec.Status = v.Status.String()
	rec.OK = v.OK()
	rec.CheckedAt = models.FormatTime(v.CheckedAt)
	if v.HasCertificate() {
		rec.Days = v.Days
		rec.Seconds = v.Seconds
		rec.NotAfter = models.FormatTime(v.NotAfter)
	}
	if v.Failure != nil {
		rec.Reason = string(v.Failure.Reason)
	}
	w.save(entry, rec)

	if w.Metrics != nil {
		if v.HasCertificate() {
			w.Metrics.SetExpiry(hostname, v.NotAfter)
		} else {
			w.Metrics.ClearExpiry(hostname)
		}
	}

	entry.WithFields(logrus.Fields{
		"status": rec.Status,
		"days":   v.Days,
	}).Debug("watched host checked")

	w.track(ctx, v)
}

func (w *Watcher) save(entry logrus.FieldLogger, rec *models.CheckRecord) {
	if w.DB == nil {
		return
	}
	if err := models.CreateCheckRecord(w.DB, rec); err != nil {
		entry.WithError(err).Error("failed to save check record")
	}
}

// track counts consecutive not-fresh verdicts and sends at most one alert
// per streak, plus a recovery once the host is fresh again.
func (w *Watcher) track(ctx context.Context, v freshness.Verdict) {
	hostname := v.Hostname
	entry := w.log().WithField("hostname", hostname)

	w.mu.Lock()
	if w.failures == nil {
		w.failures = make(map[string]int)
		w.alerted = make(map[string]bool)
	}
	if !v.OK() {
		w.failures[hostname]++
		count := w.failures[hostname]
		alerted := w.alerted[hostname]
		w.mu.Unlock()

		if count < w.AlertThreshold || alerted {
			return
		}

		detail := v.Sentence()
		if w.Notifier != nil {
			if err := w.Notifier.SendAlert(ctx, hostname, count, detail); err != nil {
				entry.WithError(err).Error("certificate alert failed")
				// Retried next round unless some channel already has it.
				if !Delivered(err) {
					return
				}
			}
		}
		entry.WithField("failures", count).Warn(detail)
		w.logAlert(hostname, models.ActionAlert, detail)

		w.mu.Lock()
		w.alerted[hostname] = true
		w.mu.Unlock()
		return
	}

	alerted := w.alerted[hostname]
	w.failures[hostname] = 0
	w.alerted[hostname] = false
	w.mu.Unlock()

	if !alerted {
		return
	}
	if w.Notifier != nil {
		if err := w.Notifier.SendRecovery(ctx, hostname); err != nil {
			entry.WithError(err).Error("certificate recovery notice failed")
		}
	}
	entry.Info("certificate recovered")
	w.logAlert(hostname, models.ActionRecovery, v.Sentence())
}

func (w *Watcher) logAlert(hostname, action, details string) {
	if w.DB != nil {
		models.LogAlert(w.DB, hostname, action, details)
	}
}

func (w *Watcher) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Watcher) log() logrus.FieldLogger {
	if w.Log != nil {
		return w.Log
	}
	return logrus.StandardLogger()
}
