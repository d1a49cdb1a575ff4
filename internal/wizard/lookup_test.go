package wizard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"treegift/internal/wizard"
)

type lookupRecorder struct {
	mu      sync.Mutex
	queries []string
	results map[string][]string
	got     chan string
}

func newLookupRecorder() *lookupRecorder {
	return &lookupRecorder{results: map[string][]string{}, got: make(chan string, 10)}
}

func (r *lookupRecorder) search(_ context.Context, query string) ([]string, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if query == "ash" {
		time.Sleep(30 * time.Millisecond)
	}
	return []string{"result for " + query}, nil
}

func (r *lookupRecorder) deliver(query string, results []string, err error) {
	r.mu.Lock()
	r.results[query] = results
	r.mu.Unlock()
	r.got <- query
}

func TestLookupDebouncesAndDropsShortQueries(t *testing.T) {
	rec := newLookupRecorder()
	lookup := wizard.NewLookup(rec.search, 20*time.Millisecond, 3, rec.deliver)
	defer lookup.Stop()

	lookup.Query("as")
	if got := <-rec.got; got != "as" {
		t.Fatalf("expected immediate empty result for short query, got %q", got)
	}
	lookup.Query("ash")
	lookup.Query("asha")
	lookup.Query("asha r")

	select {
	case got := <-rec.got:
		if got != "asha r" {
			t.Fatalf("expected only the last query delivered, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("lookup never delivered")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.queries) != 1 || rec.queries[0] != "asha r" {
		t.Fatalf("expected one debounced search, got %v", rec.queries)
	}
	if rec.results["as"] != nil {
		t.Fatal("short query should report nil results")
	}
}

func TestLookupDropsStaleResponses(t *testing.T) {
	rec := newLookupRecorder()
	lookup := wizard.NewLookup(rec.search, time.Millisecond, 3, rec.deliver)
	defer lookup.Stop()

	lookup.Query("ash")
	time.Sleep(10 * time.Millisecond) // "ash" search now in flight
	lookup.Query("asha")

	select {
	case got := <-rec.got:
		if got != "asha" {
			t.Fatalf("expected stale response dropped, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("lookup never delivered")
	}
	select {
	case got := <-rec.got:
		t.Fatalf("unexpected extra delivery %q", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestLookupStopCancelsPending(t *testing.T) {
	rec := newLookupRecorder()
	lookup := wizard.NewLookup(rec.search, 20*time.Millisecond, 3, rec.deliver)
	lookup.Query("meera")
	lookup.Stop()

	select {
	case got := <-rec.got:
		t.Fatalf("expected no delivery after stop, got %q", got)
	case <-time.After(60 * time.Millisecond):
	}
}
