package pipeline

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadState_FreshRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFile)

	st, err := LoadState(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if st.RunID == "" {
		t.Fatal("Expected a fresh run id")
	}
	if len(st.Steps) != 0 {
		t.Fatalf("Expected no completed steps, got %v", st.Steps)
	}

	st2, err := LoadState(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if st2.RunID == st.RunID {
		t.Fatal("Expected distinct run ids for distinct fresh runs")
	}
}

func TestState_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFile)
	st, err := LoadState(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	st.MarkDone(1, "preprocess")
	st.MarkDone(2, "language-models")
	if err := st.Save(path); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.RunID != st.RunID {
		t.Fatalf("Expected run id %q, got %q", st.RunID, got.RunID)
	}
	if !got.Done(1) || !got.Done(2) {
		t.Fatalf("Expected steps 1 and 2 recorded, got %v", got.Steps)
	}
	if got.Done(3) {
		t.Fatal("Expected step 3 to be pending")
	}
	if got.Steps[0].Name != "preprocess" {
		t.Fatalf("Expected step name preserved, got %q", got.Steps[0].Name)
	}
	if _, err := time.Parse(time.RFC3339, got.Steps[0].Finished); err != nil {
		t.Fatalf("Expected an RFC3339 timestamp, got %q", got.Steps[0].Finished)
	}
}

func TestState_MarkDoneUpdatesExisting(t *testing.T) {
	st := &State{RunID: "run"}
	st.MarkDone(3, "phrase-embeddings")
	st.MarkDone(3, "phrase-embeddings")
	if len(st.Steps) != 1 {
		t.Fatalf("Expected a single record, got %v", st.Steps)
	}
}
