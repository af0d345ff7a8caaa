package knowledge

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcher_ReindexesOnWrite(t *testing.T) {
	path := writeKnowledgeFile(t, "Original content about firewalls.")
	idx, err := NewIndex(Config{Path: path, ChunkSize: 500, ChunkOverlap: 50}, nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(idx, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watch loop a moment to start.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("Updated content about honeypots."), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if got := idx.Search("honeypots", 1); len(got) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("index never picked up the file change")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
