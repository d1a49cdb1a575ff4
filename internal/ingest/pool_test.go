package ingest_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"treegift/internal/ingest"
	"treegift/internal/logging"
	"treegift/internal/services"
)

func TestImagePoolCollapsesConcurrentFetches(t *testing.T) {
	source := &fakeSource{release: make(chan struct{})}
	source.set("req-1", "https://cdn/a.jpg", "https://cdn/a.jpg", "https://cdn/b.jpg")
	pool := ingest.NewImagePool(source, logging.NewNop())

	var wg sync.WaitGroup
	results := make([][]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			urls, err := pool.Fetch(context.Background(), "req-1")
			if err != nil {
				t.Errorf("Fetch: %v", err)
			}
			results[i] = urls
		}()
	}
	for source.calls.Load() == 0 {
		runtime.Gosched()
	}
	close(source.release)
	wg.Wait()

	if got := source.calls.Load(); got > 5 || got < 1 {
		t.Fatalf("unexpected source call count %d", got)
	}
	want := []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}
	for _, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("pool mismatch (-want +got):\n%s", diff)
		}
	}

	before := source.calls.Load()
	if _, err := pool.Fetch(context.Background(), "req-1"); err != nil {
		t.Fatalf("cached Fetch: %v", err)
	}
	if source.calls.Load() != before {
		t.Fatal("expected cached fetch to skip the source")
	}
}

func TestImagePoolRefreshAndMerge(t *testing.T) {
	source := &fakeSource{}
	source.set("req-1", "https://cdn/a.jpg")
	pool := ingest.NewImagePool(source, logging.NewNop())

	var notified [][]string
	pool.Subscribe(func(requestID string, urls []string) {
		if requestID != "req-1" {
			t.Errorf("unexpected request id %q", requestID)
		}
		notified = append(notified, urls)
	})

	if _, err := pool.Fetch(context.Background(), "req-1"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	merged := pool.Merge("req-1", "https://cdn/b.jpg", "https://cdn/a.jpg", " ")
	if diff := cmp.Diff([]string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, merged); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
	pool.Merge("req-1", "https://cdn/b.jpg")

	source.set("req-1", "https://cdn/a.jpg", "https://cdn/b.jpg", "https://cdn/c.jpg")
	refreshed, err := pool.Refresh(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(refreshed) != 3 {
		t.Fatalf("expected refreshed pool of 3, got %v", refreshed)
	}
	if len(notified) != 3 {
		t.Fatalf("expected notifications for load, merge, refresh; got %d", len(notified))
	}
}

func TestImagePoolFetchFailure(t *testing.T) {
	pool := ingest.NewImagePool(&fakeSource{err: errors.New("down")}, logging.NewNop())
	if _, err := pool.Fetch(context.Background(), "req-1"); !errors.Is(err, services.ErrIngestion) {
		t.Fatalf("expected ingestion error, got %v", err)
	}
	if _, err := pool.Fetch(context.Background(), ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}
