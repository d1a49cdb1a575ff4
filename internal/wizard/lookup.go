package wizard

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"treegift/internal/remote"
)

// SearchFunc runs one lookup query.
type SearchFunc[T any] func(ctx context.Context, query string) ([]T, error)

// ResultFunc receives lookup results. Queries shorter than the minimum length
// report nil results without searching.
type ResultFunc[T any] func(query string, results []T, err error)

// Lookup is a debounced search-as-you-type helper. Only the latest query's
// response is delivered; superseded responses are dropped.
type Lookup[T any] struct {
	search   SearchFunc[T]
	onResult ResultFunc[T]
	delay    time.Duration
	minLen   int

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewLookup constructs a lookup that waits delay after the last keystroke and
// searches only queries of at least minLen runes.
func NewLookup[T any](search SearchFunc[T], delay time.Duration, minLen int, onResult ResultFunc[T]) *Lookup[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lookup[T]{
		search:   search,
		onResult: onResult,
		delay:    delay,
		minLen:   minLen,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Query records a new input value and schedules a search.
func (l *Lookup[T]) Query(query string) {
	query = strings.TrimSpace(query)
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.seq++
	seq := l.seq
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if utf8.RuneCountInString(query) < l.minLen {
		l.mu.Unlock()
		l.deliver(query, nil, nil)
		return
	}
	l.timer = time.AfterFunc(l.delay, func() { l.run(seq, query) })
	l.mu.Unlock()
}

func (l *Lookup[T]) run(seq uint64, query string) {
	results, err := l.search(l.ctx, query)
	l.mu.Lock()
	stale := l.stopped || seq != l.seq
	l.mu.Unlock()
	if stale {
		return
	}
	l.deliver(query, results, err)
}

func (l *Lookup[T]) deliver(query string, results []T, err error) {
	if l.onResult != nil {
		l.onResult(query, results, err)
	}
}

// Stop cancels the pending timer and drops any in-flight response.
func (l *Lookup[T]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.seq++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.cancel()
}

// UserDirectory is the subset of the data service used by lookups.
type UserDirectory interface {
	GetUsers(ctx context.Context, offset, limit int, filters ...remote.Filter) (remote.Page[remote.User], error)
	GetGroups(ctx context.Context, offset, limit int, filters ...remote.Filter) (remote.Page[remote.Group], error)
}

// SearchUsers returns a SearchFunc matching users by name.
func SearchUsers(dir UserDirectory, pageSize int) SearchFunc[remote.User] {
	return func(ctx context.Context, query string) ([]remote.User, error) {
		field := "name"
		if strings.Contains(query, "@") {
			field = "email"
		}
		page, err := dir.GetUsers(ctx, 0, pageSize, remote.Contains(field, query))
		return page.Results, err
	}
}

// SearchGroups returns a SearchFunc matching groups by name.
func SearchGroups(dir UserDirectory, pageSize int) SearchFunc[remote.Group] {
	return func(ctx context.Context, query string) ([]remote.Group, error) {
		page, err := dir.GetGroups(ctx, 0, pageSize, remote.Contains("name", query))
		return page.Results, err
	}
}
