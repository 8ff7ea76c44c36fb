package reminder

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joelkehle/patrol-report/internal/observability"
	"github.com/joelkehle/patrol-report/internal/statestore"
)

// Scheduler checks the reminder policy once per Interval.
type Scheduler struct {
	state    statestore.Store
	notifier Notifier
	clock    clockwork.Clock
	loc      *time.Location
	metrics  *observability.Metrics
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLocation sets the zone the active window is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(state statestore.Store, notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		state:    state,
		notifier: notifier,
		clock:    clockwork.NewRealClock(),
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status describes the reminder state at a point in time.
type Status struct {
	LastReportAt *time.Time `json:"last_report_at,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`
	InWindow     bool       `json:"in_window"`
	Due          bool       `json:"due"`
}

func (s *Scheduler) Status() (Status, error) {
	now := s.clock.Now().In(s.loc)
	stamp, at, ok, err := statestore.LastReportTime(s.state)
	if err != nil {
		return Status{}, err
	}
	sent, err := statestore.ReminderSentFor(s.state)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		ReminderSent: stamp != "" && sent == stamp,
		InWindow:     InActiveWindow(now),
		Due:          Due(now, stamp, sent),
	}
	if ok {
		at = at.In(s.loc)
		st.LastReportAt = &at
	}
	return st, nil
}

// Check evaluates the policy once and sends at most one reminder. It reports
// whether a reminder was sent.
func (s *Scheduler) Check(ctx context.Context) (bool, error) {
	stamp, _, _, err := statestore.LastReportTime(s.state)
	if err != nil {
		return false, err
	}
	sent, err := statestore.ReminderSentFor(s.state)
	if err != nil {
		return false, err
	}
	now := s.clock.Now().In(s.loc)
	if !Due(now, stamp, sent) {
		return false, nil
	}
	n := Notification{Title: Title, Body: Body, SentAt: now, ReportStamp: stamp}
	if err := s.notifier.Notify(ctx, n); err != nil {
		log.Printf("reminder delivery failed report=%s err=%v", stamp, err)
	} else if s.metrics != nil {
		s.metrics.RemindersSent.Inc()
	}
	// The marker is written even when delivery failed so a report is
	// reminded about at most once.
	if err := statestore.MarkReminderSent(s.state, stamp); err != nil {
		return true, err
	}
	return true, nil
}

// Run requests notifier permission once, then checks every Interval until
// ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	if a, ok := s.notifier.(Authorizer); ok {
		if err := a.Authorize(ctx); err != nil {
			log.Printf("reminder notifier not authorized err=%v", err)
		}
	}
	ticker := s.clock.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.Check(ctx); err != nil {
				log.Printf("reminder check failed err=%v", err)
			}
		}
	}
}
