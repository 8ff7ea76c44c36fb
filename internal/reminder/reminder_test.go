package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/patrol-report/internal/statestore"
)

// 2026-10-14 is a Wednesday, 2026-10-18 a Sunday.
func at(day, hour, min int) time.Time {
	return time.Date(2026, 10, day, hour, min, 0, 0, time.UTC)
}

func TestDue(t *testing.T) {
	stamp := func(t time.Time) string { return statestore.Stamp(t) }
	tests := []struct {
		name       string
		now        time.Time
		last, sent string
		want       bool
	}{
		{"no report yet", at(14, 20, 0), "", "", false},
		{"evening after two hours", at(14, 20, 0), stamp(at(14, 18, 0)), "", true},
		{"just under two hours", at(14, 19, 59), stamp(at(14, 18, 0)), "", false},
		{"already reminded", at(14, 20, 0), stamp(at(14, 18, 0)), stamp(at(14, 18, 0)), false},
		{"reminded for an older report", at(14, 20, 0), stamp(at(14, 18, 0)), stamp(at(14, 9, 0)), true},
		{"weekday afternoon", at(14, 16, 59), stamp(at(14, 9, 0)), "", false},
		{"window opens at 17", at(14, 17, 0), stamp(at(14, 9, 0)), "", true},
		{"early morning", at(15, 5, 59), stamp(at(15, 1, 0)), "", true},
		{"window closes at 6", at(15, 6, 0), stamp(at(15, 1, 0)), "", false},
		{"sunday midday", at(18, 12, 0), stamp(at(18, 9, 0)), "", true},
		{"garbage stamp", at(14, 20, 0), "yesterday", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Due(tt.now, tt.last, tt.sent))
		})
	}
}

func TestInActiveWindowUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 12:00 UTC Wednesday is 17:30 IST.
	noon := at(14, 12, 0)
	assert.False(t, InActiveWindow(noon))
	assert.True(t, InActiveWindow(noon.In(ist)))
}

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []Notification
	err       error
	authorize error
	asked     int
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) Authorize(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asked++
	return r.authorize
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestSchedulerCheckSendsOnce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(14, 20, 0))
	state := statestore.NewMemoryStore()
	require.NoError(t, statestore.MarkReportGenerated(state, at(14, 17, 30)))
	notifier := &recordingNotifier{}
	s := NewScheduler(state, notifier, WithClock(clock), WithLocation(time.UTC))

	sent, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, Title, notifier.sent[0].Title)
	assert.Equal(t, Body, notifier.sent[0].Body)

	marker, err := statestore.ReminderSentFor(state)
	require.NoError(t, err)
	assert.Equal(t, statestore.Stamp(at(14, 17, 30)), marker)

	clock.Advance(time.Hour)
	sent, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, notifier.sent, 1)

	// A new report resets the marker and the two hour wait.
	require.NoError(t, statestore.MarkReportGenerated(state, clock.Now()))
	clock.Advance(2 * time.Hour)
	sent, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, notifier.sent, 2)
}

func TestSchedulerCheckMarksEvenWhenDeliveryFails(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(18, 11, 0))
	state := statestore.NewMemoryStore()
	require.NoError(t, statestore.MarkReportGenerated(state, at(18, 8, 0)))
	notifier := &recordingNotifier{err: errors.New("permission denied")}
	s := NewScheduler(state, notifier, WithClock(clock), WithLocation(time.UTC))

	sent, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	marker, _ := statestore.ReminderSentFor(state)
	assert.NotEmpty(t, marker)
}

func TestSchedulerStatus(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(14, 20, 0))
	state := statestore.NewMemoryStore()
	s := NewScheduler(state, LogNotifier{}, WithClock(clock), WithLocation(time.UTC))

	st, err := s.Status()
	require.NoError(t, err)
	assert.Nil(t, st.LastReportAt)
	assert.True(t, st.InWindow)
	assert.False(t, st.Due)

	require.NoError(t, statestore.MarkReportGenerated(state, at(14, 17, 0)))
	st, err = s.Status()
	require.NoError(t, err)
	require.NotNil(t, st.LastReportAt)
	assert.True(t, st.LastReportAt.Equal(at(14, 17, 0)))
	assert.True(t, st.Due)
	assert.False(t, st.ReminderSent)
}

func TestSchedulerRunTicksEveryMinute(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(14, 19, 58))
	state := statestore.NewMemoryStore()
	require.NoError(t, statestore.MarkReportGenerated(state, at(14, 18, 0)))
	notifier := &recordingNotifier{authorize: errors.New("denied")}
	s := NewScheduler(state, notifier, WithClock(clock), WithLocation(time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(Interval)
	// 19:59 is not yet due; give the loop a moment to run the check.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, notifier.count())

	clock.Advance(Interval)
	require.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 1, notifier.asked, "permission requested once at start, failure tolerated")
}

func TestWebhookNotifier(t *testing.T) {
	var got Notification
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sig = r.Header.Get("X-Reminder-Signature")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "s3cret")
	require.NoError(t, n.Authorize(context.Background()))
	require.NoError(t, n.Notify(context.Background(), Notification{Title: Title, Body: Body, ReportStamp: "42"}))
	assert.Equal(t, Title, got.Title)
	assert.Equal(t, "42", got.ReportStamp)
	assert.Len(t, sig, 64)
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "")
	assert.Error(t, n.Authorize(context.Background()))
	err := n.Notify(context.Background(), Notification{Title: Title})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=403")
}
