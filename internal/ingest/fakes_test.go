package ingest_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

type fakeStorage struct {
	mu       sync.Mutex
	present  map[string]bool
	failKey  string
	checked  []string
	uploads  map[string][]byte
	failName string
}

func newFakeStorage(keys ...string) *fakeStorage {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	return &fakeStorage{present: present, uploads: make(map[string][]byte)}
}

func (f *fakeStorage) PublicFileExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, key)
	if key == f.failKey {
		return false, errors.New("storage unavailable")
	}
	return f.present[key], nil
}

func (f *fakeStorage) URLForKey(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeStorage) UploadFile(_ context.Context, namespace, name string, body io.Reader, requestID string) (string, error) {
	if name == f.failName {
		return "", errors.New("upload rejected")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := namespace + "/" + requestID + "/" + name
	f.mu.Lock()
	f.uploads[key] = data
	f.present[key] = true
	f.mu.Unlock()
	return f.URLForKey(key), nil
}

type fakeSource struct {
	calls   atomic.Int32
	release chan struct{}
	mu      sync.Mutex
	images  map[string][]string
	err     error
}

func (f *fakeSource) GetImagesForRequestID(_ context.Context, requestID string) ([]string, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.images[requestID]...), nil
}

func (f *fakeSource) set(requestID string, urls ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.images == nil {
		f.images = make(map[string][]string)
	}
	f.images[requestID] = urls
}
