package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store. Entries are copied on the way in and out so
// callers cannot mutate stored state.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key][]byte
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[Key][]byte), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	raw, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (m *Memory) Put(ctx context.Context, key Key, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stamped := *e
	stamped.UpdatedAt = m.now().UTC()
	raw, err := encodeEntry(&stamped)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, key Key) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// record is the serialized form of an Entry, shared by both stores.
type record struct {
	PageImage []byte          `json:"page_image,omitempty"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func encodeEntry(e *Entry) ([]byte, error) {
	summary, output, err := encodeParts(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record{PageImage: e.PageImage, Summary: summary, Output: output, UpdatedAt: e.UpdatedAt})
}

func decodeEntry(raw []byte) (*Entry, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConsistency, err)
	}
	return decodeParts(r.PageImage, r.Summary, r.Output, r.UpdatedAt)
}

func encodeParts(e *Entry) (summary, output []byte, err error) {
	if e.Summary != nil {
		if summary, err = json.Marshal(e.Summary); err != nil {
			return nil, nil, fmt.Errorf("encode summary: %w", err)
		}
	}
	if e.Output != nil {
		if output, err = json.Marshal(e.Output); err != nil {
			return nil, nil, fmt.Errorf("encode output: %w", err)
		}
	}
	return summary, output, nil
}

func decodeParts(image, summary, output []byte, updated time.Time) (*Entry, error) {
	e := &Entry{PageImage: image, UpdatedAt: updated}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &e.Summary); err != nil {
			return nil, fmt.Errorf("%w: summary: %v", ErrCacheConsistency, err)
		}
	}
	if len(output) > 0 {
		if err := json.Unmarshal(output, &e.Output); err != nil {
			return nil, fmt.Errorf("%w: output: %v", ErrCacheConsistency, err)
		}
	}
	return e, nil
}
