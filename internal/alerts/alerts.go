// Package alerts is the in-process notification bus: any component can
// publish, one place renders. Replaces the browser broadcast hack the web
// client used for the same purpose.
package alerts

import "sync"

// Level classifies an alert.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Alert is one user-visible message. Never a raw error payload.
type Alert struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Bus fans published alerts out to subscribers. Publishing never blocks: a
// subscriber that cannot keep up loses alerts rather than stalling checkout.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Alert
	next int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[int]chan Alert{}}
}

// Publish delivers the alert to every subscriber.
func (b *Bus) Publish(level Level, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- Alert{Level: level, Message: message}:
		default:
		}
	}
}

// Subscribe registers a listener; the returned func removes it.
func (b *Bus) Subscribe() (<-chan Alert, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Alert, 16)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}
