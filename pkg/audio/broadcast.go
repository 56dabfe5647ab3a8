package audio

import "sync"

// Broadcaster fans one frame stream out to any number of subscribers so the
// analyzer and the live forwarder can consume the same capture channel
// without stealing frames from each other.
//
// Delivery is non-blocking: a subscriber that falls behind loses frames
// rather than stalling the capture path. When the source channel closes, all
// subscriber channels close.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Frame
	next   int
	closed bool
}

// NewBroadcaster starts fanning out src. The broadcaster stops when src
// closes or Close is called.
func NewBroadcaster(src <-chan Frame) *Broadcaster {
	b := &Broadcaster{subs: make(map[int]chan Frame)}
	go b.run(src)
	return b
}

func (b *Broadcaster) run(src <-chan Frame) {
	for f := range src {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		for _, ch := range b.subs {
			select {
			case ch <- f:
			default:
			}
		}
		b.mu.Unlock()
	}
	b.Close()
}

// Subscribe returns a fresh frame channel and a cancel function that removes
// the subscription and closes the channel. After the broadcaster closes,
// Subscribe returns an already-closed channel.
func (b *Broadcaster) Subscribe() (<-chan Frame, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Frame, 8)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close shuts the broadcaster down and closes every subscriber channel.
// Idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
