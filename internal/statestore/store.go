// Package statestore keeps the small amount of state that outlives a wizard
// session: when the last report was generated and which report a reminder
// was already sent for.
package statestore

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Keys held by the store. Values are epoch milliseconds as decimal strings.
const (
	KeyLastReport   = "lastReportTimestamp"
	KeyReminderSent = "reminderSentFor"
)

var ErrClosed = errors.New("state store closed")

// Store is a string key-value store with a single logical writer.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// MemoryStore keeps values in process memory only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Stamp formats t the way the store records report times.
func Stamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseStamp reads a value written by Stamp.
func ParseStamp(v string) (time.Time, bool) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// LastReportTime returns the raw stamp of the last generated report and the
// time it encodes. ok is false when no report was recorded or the stamp does
// not parse.
func LastReportTime(s Store) (stamp string, at time.Time, ok bool, err error) {
	stamp, found, err := s.Get(KeyLastReport)
	if err != nil || !found {
		return "", time.Time{}, false, err
	}
	at, ok = ParseStamp(stamp)
	return stamp, at, ok, nil
}

// MarkReportGenerated records t as the last report time and clears the
// reminder marker.
func MarkReportGenerated(s Store, t time.Time) error {
	if err := s.Set(KeyLastReport, Stamp(t)); err != nil {
		return fmt.Errorf("record report time: %w", err)
	}
	if err := s.Delete(KeyReminderSent); err != nil {
		return fmt.Errorf("clear reminder marker: %w", err)
	}
	return nil
}

// MarkReminderSent records that a reminder went out for the report stamp.
func MarkReminderSent(s Store, stamp string) error {
	if err := s.Set(KeyReminderSent, stamp); err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}

// ReminderSentFor returns the stamp a reminder was last sent for, or "".
func ReminderSentFor(s Store) (string, error) {
	v, _, err := s.Get(KeyReminderSent)
	return v, err
}
