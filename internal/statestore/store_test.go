package statestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func backends(t *testing.T) map[string]func() Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(filepath.Join(dir, "state.json"))
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return s
		},
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(dir, "state.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		},
	}
}

func TestStoreGetSetDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			if _, ok, err := s.Get(KeyLastReport); err != nil || ok {
				t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
			}
			if err := s.Set(KeyLastReport, "1700000000000"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(KeyLastReport, "1700000000001"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, ok, err := s.Get(KeyLastReport)
			if err != nil || !ok || v != "1700000000001" {
				t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
			}
			if err := s.Delete(KeyLastReport); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(KeyLastReport); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
			if _, ok, _ := s.Get(KeyLastReport); ok {
				t.Fatal("expected key removed")
			}
		})
	}
}

func TestMarkReportGeneratedClearsReminder(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			first := time.UnixMilli(1700000000000)
			if err := MarkReportGenerated(s, first); err != nil {
				t.Fatal(err)
			}
			if err := MarkReminderSent(s, Stamp(first)); err != nil {
				t.Fatal(err)
			}
			sent, err := ReminderSentFor(s)
			if err != nil || sent != "1700000000000" {
				t.Fatalf("ReminderSentFor: %q %v", sent, err)
			}

			second := first.Add(3 * time.Hour)
			if err := MarkReportGenerated(s, second); err != nil {
				t.Fatal(err)
			}
			stamp, at, ok, err := LastReportTime(s)
			if err != nil || !ok {
				t.Fatalf("LastReportTime: ok=%v err=%v", ok, err)
			}
			if stamp != Stamp(second) || !at.Equal(second) {
				t.Fatalf("unexpected last report %q %v", stamp, at)
			}
			if sent, _ := ReminderSentFor(s); sent != "" {
				t.Fatalf("reminder marker not cleared: %q", sent)
			}
		})
	}
}

func TestLastReportTimeUnparseable(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Set(KeyLastReport, "yesterday"); err != nil {
		t.Fatal(err)
	}
	stamp, _, ok, err := LastReportTime(s)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("garbage stamp should not parse")
	}
	if stamp != "yesterday" {
		t.Fatalf("raw stamp should be returned, got %q", stamp)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyLastReport, "42"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := reopened.Get(KeyLastReport); !ok || v != "42" {
		t.Fatalf("expected persisted value, got %q ok=%v", v, ok)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Fatal("expected error for corrupt state file")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyReminderSent, "99"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(KeyReminderSent); !ok || v != "99" {
		t.Fatalf("expected persisted value, got %q ok=%v", v, ok)
	}
}

func TestClosedStoresRefuseWrites(t *testing.T) {
	mem := NewMemoryStore()
	mem.Close()
	if err := mem.Set("k", "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	file, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	file.Close()
	if _, _, err := file.Get("k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendMemory, BackendFile, BackendSQLite} {
		s, err := Open(backend, filepath.Join(dir, backend))
		if err != nil {
			t.Fatalf("Open(%s): %v", backend, err)
		}
		s.Close()
	}
	if _, err := Open("redis", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
