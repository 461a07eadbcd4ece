package handshake

import (
	"sync"
)

// TypeLoginSuccess is the message type relayed from the popup to the opener.
const TypeLoginSuccess = "SPOTIFY_LOGIN_SUCCESS"

// Message is the cross-context message exchanged between popup and opener.
type Message struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Valid reports whether m has the accepted LOGIN_SUCCESS shape.
func (m Message) Valid() bool {
	return m.Type == TypeLoginSuccess && m.Token != ""
}

// Poster delivers messages to an opener.
type Poster interface {
	PostMessage(msg Message)
}

// Bus is the process-wide message channel. Listeners receive every posted message.
type Bus struct {
	mu        sync.Mutex
	listeners map[uint64]func(Message)
	nextID    uint64
}

// Compile-time check to ensure Bus implements Poster
var _ Poster = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[uint64]func(Message))}
}

// AddListener registers fn. The returned remove function is idempotent.
func (b *Bus) AddListener(fn func(Message)) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// PostMessage delivers msg to all listeners registered at the time of the call.
// Delivery with no listeners is a silent drop.
func (b *Bus) PostMessage(msg Message) {
	b.mu.Lock()
	fns := make([]func(Message), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// Opener returns the bus as a Poster if some handshake is currently listening.
// This is the "opened by another instance" check performed by the popup side.
func (b *Bus) Opener() (Poster, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.listeners) == 0 {
		return nil, false
	}
	return b, true
}
