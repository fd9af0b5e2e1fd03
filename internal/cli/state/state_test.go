package state

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	empty, err := Load(path)
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if empty.LastSubmissionID != "" {
		t.Fatalf("expected empty state, got %+v", empty)
	}

	submittedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := Save(path, SessionState{LastSubmissionID: "sub-1", SubmittedAt: submittedAt}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LastSubmissionID != "sub-1" || !loaded.SubmittedAt.Equal(submittedAt) {
		t.Fatalf("unexpected state: %+v", loaded)
	}

	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
	cleared, err := Load(path)
	if err != nil || cleared.LastSubmissionID != "" {
		t.Fatalf("expected cleared state, got %+v err=%v", cleared, err)
	}
}
