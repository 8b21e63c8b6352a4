package browser

import (
	"sync"
	"time"
)

// LogBuffer is a bounded FIFO ring of console entries. Appends evict the
// oldest entry once capacity is reached; reads copy so they never block
// ingestion beyond the duration of the copy.
type LogBuffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
}

// NewLogBuffer creates a log ring buffer with the given capacity.
func NewLogBuffer(capacity int) *LogBuffer {
	return &LogBuffer{
		entries:  make([]LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append adds one entry, evicting the oldest if full. Entries land in
// delivery order; callers needing chronological order sort by timestamp.
func (b *LogBuffer) Append(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, entry)
	} else {
		b.entries[b.head] = entry
	}
	b.head = (b.head + 1) % b.capacity
}

// Snapshot returns a copy of the buffer contents, oldest first.
func (b *LogBuffer) Snapshot() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]LogEntry, 0, len(b.entries))
	if len(b.entries) < b.capacity {
		out = append(out, b.entries...)
		return out
	}
	out = append(out, b.entries[b.head:]...)
	out = append(out, b.entries[:b.head]...)
	return out
}

// Len reports the current entry count.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear empties the buffer, returning how many entries were dropped.
func (b *LogBuffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.entries = b.entries[:0]
	b.head = 0
	return n
}

// RecentErrors returns error-level entries whose timestamp falls within the
// trailing window. Used to annotate action results with nearby failures.
func (b *LogBuffer) RecentErrors(window time.Duration) []LogEntry {
	cutoff := time.Now().Add(-window)
	var out []LogEntry
	for _, e := range b.Snapshot() {
		if e.Level == "error" && e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// NetworkBuffer is a bounded FIFO ring of network entries with O(1) request-id
// lookup so responses and failures mutate their entry in place. A lookup for
// an id whose entry was evicted misses, and the update is silently dropped.
type NetworkBuffer struct {
	mu       sync.RWMutex
	entries  []*NetworkEntry
	byID     map[string]*NetworkEntry
	capacity int
	head     int
}

// NewNetworkBuffer creates a network ring buffer with the given capacity.
func NewNetworkBuffer(capacity int) *NetworkBuffer {
	return &NetworkBuffer{
		entries:  make([]*NetworkEntry, 0, capacity),
		byID:     make(map[string]*NetworkEntry, capacity),
		capacity: capacity,
	}
}

// Add records a newly-sent request, evicting (and de-indexing) the oldest
// entry if at capacity.
func (b *NetworkBuffer) Add(entry *NetworkEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, entry)
	} else {
		evicted := b.entries[b.head]
		if evicted != nil {
			delete(b.byID, evicted.RequestID)
		}
		b.entries[b.head] = entry
	}
	b.head = (b.head + 1) % b.capacity
	b.byID[entry.RequestID] = entry
}

// Update mutates the entry with the given request id in place. Returns false
// if the id is unknown (predates the buffer or was evicted); the caller drops
// the notification.
func (b *NetworkBuffer) Update(requestID string, fn func(*NetworkEntry)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.byID[requestID]
	if !ok {
		return false
	}
	fn(entry)
	return true
}

// Snapshot returns copies of the entries, oldest first. Values are copied so
// later in-place mutations do not race with callers.
func (b *NetworkBuffer) Snapshot() []NetworkEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]NetworkEntry, 0, len(b.entries))
	appendRange := func(entries []*NetworkEntry) {
		for _, e := range entries {
			if e != nil {
				out = append(out, *e)
			}
		}
	}
	if len(b.entries) < b.capacity {
		appendRange(b.entries)
		return out
	}
	appendRange(b.entries[b.head:])
	appendRange(b.entries[:b.head])
	return out
}

// Len reports the current entry count.
func (b *NetworkBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear empties the buffer and index, returning how many entries were dropped.
func (b *NetworkBuffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.entries = b.entries[:0]
	b.byID = make(map[string]*NetworkEntry, b.capacity)
	b.head = 0
	return n
}

// RecentFailures returns failed or error-status entries within the trailing
// window.
func (b *NetworkBuffer) RecentFailures(window time.Duration) []NetworkEntry {
	cutoff := time.Now().Add(-window)
	var out []NetworkEntry
	for _, e := range b.Snapshot() {
		if e.IsFailure() && e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
