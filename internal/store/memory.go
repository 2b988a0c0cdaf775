package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

type memoryEntry struct {
	value   json.RawMessage
	version int64
}

type memoryWatcher struct {
	prefix string
	fn     func(Event)
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]memoryEntry
	watchers map[int]*memoryWatcher
	nextID   int
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]memoryEntry),
		watchers: make(map[int]*memoryWatcher),
	}
}

func (m *MemoryStore) Read(ctx context.Context, path string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.docs[path]
	if !ok {
		return nil, nil
	}
	return &Snapshot{Value: append(json.RawMessage(nil), entry.value...), Version: entry.version}, nil
}

func (m *MemoryStore) Write(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &ProviderError{Op: "write", Path: path, Err: err}
	}

	m.mu.Lock()
	entry := m.docs[path]
	entry.value = raw
	entry.version++
	m.docs[path] = entry
	watchers := m.matchingWatchers(path)
	m.mu.Unlock()

	notify(watchers, Event{Path: path, Value: raw})
	return nil
}

func (m *MemoryStore) WriteIf(ctx context.Context, path string, value interface{}, version int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &ProviderError{Op: "writeIf", Path: path, Err: err}
	}

	m.mu.Lock()
	entry, ok := m.docs[path]
	current := int64(0)
	if ok {
		current = entry.version
	}
	if current != version {
		m.mu.Unlock()
		return ErrVersionMismatch
	}
	m.docs[path] = memoryEntry{value: raw, version: current + 1}
	watchers := m.matchingWatchers(path)
	m.mu.Unlock()

	notify(watchers, Event{Path: path, Value: raw})
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, values map[string]interface{}) error {
	var succeeded, failed []string
	var firstErr error
	for path, value := range values {
		if err := m.Write(ctx, path, value); err != nil {
			failed = append(failed, path)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded = append(succeeded, path)
	}
	if firstErr == nil {
		return nil
	}
	if len(succeeded) == 0 {
		return firstErr
	}
	return &PartialWriteError{Succeeded: succeeded, Failed: failed, Err: firstErr}
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	_, existed := m.docs[path]
	delete(m.docs, path)
	watchers := m.matchingWatchers(path)
	m.mu.Unlock()

	if existed {
		notify(watchers, Event{Path: path, Deleted: true})
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]json.RawMessage)
	for path, entry := range m.docs {
		if strings.HasPrefix(path, prefix) {
			result[path] = append(json.RawMessage(nil), entry.value...)
		}
	}
	return result, nil
}

func (m *MemoryStore) Watch(ctx context.Context, prefix string, fn func(Event)) (func(), error) {
	if fn == nil {
		return nil, &ProviderError{Op: "watch", Path: prefix, Err: fmt.Errorf("nil callback")}
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = &memoryWatcher{prefix: prefix, fn: fn}
	m.mu.Unlock()

	stop := func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	return stop, nil
}

// matchingWatchers must be called with the lock held; callbacks are invoked
// after the lock is released.
func (m *MemoryStore) matchingWatchers(path string) []*memoryWatcher {
	var matched []*memoryWatcher
	for _, w := range m.watchers {
		if strings.HasPrefix(path, w.prefix) {
			matched = append(matched, w)
		}
	}
	return matched
}

func notify(watchers []*memoryWatcher, event Event) {
	for _, w := range watchers {
		w.fn(event)
	}
}
