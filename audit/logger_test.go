package audit

import (
	"path"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// setupTestLogger creates a logger on a temporary database.
func setupTestLogger(t *testing.T) *Logger {
	l, err := Open(path.Join(t.TempDir(), "test_audit.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecord(t *testing.T) {
	l := setupTestLogger(t)

	now := time.Now().UTC().Unix()
	events := []Event{
		{EventType: string(EventManifest), Timestamp: now - 20, Path: "ham.ipa", BundleIdentifier: "com.example.app.spam", BundleVersion: "1.0.0", RemoteAddr: "10.0.0.1:5000", RequestID: "r1"},
		{EventType: string(EventArchive), Timestamp: now - 10, Path: "ham.ipa", RemoteAddr: "10.0.0.1:5001", RequestID: "r2"},
		{EventType: string(EventArchive), Timestamp: now, Path: "eggs.ipa", RemoteAddr: "10.0.0.2:5000", RequestID: "r3"},
	}
	for _, e := range events {
		if err := l.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := l.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	want := []Event{events[2], events[1], events[0]}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Event{}, "ID")); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
	for _, e := range got {
		if e.ID == "" {
			t.Errorf("event %+v has no ID", e)
		}
	}

	got, err = l.EventsByPath("ham.ipa", 1)
	if err != nil {
		t.Fatalf("EventsByPath: %v", err)
	}
	if len(got) != 1 || got[0].RequestID != "r2" {
		t.Errorf("unexpected events %+v", got)
	}
}

func TestRecordDefaults(t *testing.T) {
	l := setupTestLogger(t)
	before := time.Now().UTC().Unix()
	if err := l.Record(Event{EventType: string(EventArchive), Path: "ham.ipa"}); err != nil {
		t.Fatal(err)
	}
	got, err := l.RecentEvents(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("RecentEvents = %v, %v", got, err)
	}
	if got[0].ID == "" || got[0].Timestamp < before {
		t.Errorf("defaults not applied: %+v", got[0])
	}
}

func TestDeleteOldEvents(t *testing.T) {
	l := setupTestLogger(t)
	old := time.Now().Add(-48 * time.Hour).UTC().Unix()
	if err := l.Record(Event{EventType: string(EventArchive), Timestamp: old, Path: "old.ipa"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(Event{EventType: string(EventArchive), Path: "new.ipa"}); err != nil {
		t.Fatal(err)
	}

	n, err := l.DeleteOldEvents(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted %d events, want 1", n)
	}
	got, _ := l.RecentEvents(10)
	if len(got) != 1 || got[0].Path != "new.ipa" {
		t.Errorf("unexpected remaining events %+v", got)
	}
}
