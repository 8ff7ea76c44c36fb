package wizard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joelkehle/patrol-report/internal/report"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrGenerationInFlight  = errors.New("report generation already in progress")
	ErrConfirmationPending = errors.New("jockey pump confirmation pending")
	ErrReportIncomplete    = errors.New("report can only be generated from a complete final step")
)

// Session is one guard's pass through the wizard.
type Session struct {
	Token     string
	CreatedAt time.Time

	mu         sync.Mutex
	ctrl       *Controller
	generating bool
	pending    report.Data
	last       *report.Generated
	lastData   report.Data
	touchedAt  time.Time
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	Token                string       `json:"token"`
	Step                 int          `json:"step"`
	StepTitle            string       `json:"step_title"`
	CanAdvance           bool         `json:"can_advance"`
	Missing              []string     `json:"missing,omitempty"`
	AwaitingConfirmation bool         `json:"awaiting_confirmation"`
	ConfirmationPrompt   string       `json:"confirmation_prompt,omitempty"`
	Generating           bool         `json:"generating"`
	HasReport            bool         `json:"has_report"`
	Steps                map[int]bool `json:"steps"`
	Data                 report.Data  `json:"data"`
}

// With runs fn with exclusive access to the session's controller.
func (s *Session) With(fn func(*Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	data := s.ctrl.Data()
	missing, _ := report.MissingFields(data, s.ctrl.Step())
	steps := make(map[int]bool, report.LastStep)
	for step := report.FirstStep; step <= report.LastStep; step++ {
		steps[step] = report.IsStepComplete(data, step)
	}
	snap := Snapshot{
		Token:                s.Token,
		Step:                 s.ctrl.Step(),
		StepTitle:            report.StepTitle(s.ctrl.Step()),
		CanAdvance:           len(missing) == 0,
		Missing:              missing,
		AwaitingConfirmation: s.ctrl.AwaitingConfirmation(),
		Generating:           s.generating,
		HasReport:            s.last != nil,
		Steps:                steps,
		Data:                 data,
	}
	if snap.AwaitingConfirmation {
		snap.ConfirmationPrompt = s.ctrl.JockeyPrompt()
	}
	return snap
}

// BeginGeneration claims the session's single generation slot and returns the
// record to generate from. The session must be on a complete final step.
func (s *Session) BeginGeneration() (report.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return report.Data{}, ErrGenerationInFlight
	}
	if s.ctrl.AwaitingConfirmation() {
		return report.Data{}, ErrConfirmationPending
	}
	if s.ctrl.Step() != report.LastStep || !s.ctrl.CanAdvance() {
		return report.Data{}, ErrReportIncomplete
	}
	s.generating = true
	s.pending = s.ctrl.Data()
	return s.pending.Clone(), nil
}

// EndGeneration releases the generation slot. A nil result means the attempt
// failed and the previous report, if any, is kept.
func (s *Session) EndGeneration(result *report.Generated) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	if result != nil {
		s.last = result
		s.lastData = s.pending
	}
	s.pending = report.Data{}
}

// LastReport returns the most recent report generated in this session.
func (s *Session) LastReport() (report.Generated, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return report.Generated{}, false
	}
	return *s.last, true
}

// LastReportData returns the most recent report together with the record it
// was generated from, which later edits do not affect.
func (s *Session) LastReportData() (report.Data, report.Generated, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return report.Data{}, report.Generated{}, false
	}
	return s.lastData.Clone(), *s.last, true
}

type SessionStore struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	sessions map[string]*Session
}

func NewSessionStore(clock clockwork.Clock) *SessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionStore{
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SessionStore) Create() *Session {
	now := s.clock.Now()
	sess := &Session{
		Token:     generateToken(),
		CreatedAt: now,
		ctrl:      NewController(),
		touchedAt: now,
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for token and marks it as recently used.
func (s *SessionStore) Get(token string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	sess.touchedAt = s.clock.Now()
	sess.mu.Unlock()
	return sess, nil
}

func (s *SessionStore) Discard(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than ttl. Sessions with a generation
// in flight are kept.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := s.clock.Now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.touchedAt.Before(cutoff) && !sess.generating
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// SweepLoop runs Sweep every interval until ctx is done.
func (s *SessionStore) SweepLoop(ctx context.Context, ttl, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.Sweep(ttl); n > 0 {
				log.Printf("swept idle sessions count=%d", n)
			}
		}
	}
}
