package event

import "sync"

// Listener receives events on the publishing goroutine and must not block.
type Listener func(Event)

// Handle identifies a subscription. The zero Handle is never issued.
type Handle uint64

// Bus fans events out to subscribers in subscription order. Publish takes a
// snapshot of the listeners, so a listener removed during a dispatch may
// still see that one event.
type Bus struct {
	mu        sync.RWMutex
	next      Handle
	listeners map[Handle]Listener
	order     []Handle
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[Handle]Listener)}
}

func (b *Bus) Subscribe(l Listener) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.listeners[b.next] = l
	b.order = append(b.order, b.next)
	return b.next
}

// Unsubscribe is a no-op for unknown handles.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[h]; !ok {
		return
	}
	delete(b.listeners, h)
	for i, o := range b.order {
		if o == h {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, h := range b.order {
		snapshot = append(snapshot, b.listeners[h])
	}
	b.mu.RUnlock()

	for _, l := range snapshot {
		l(ev)
	}
}

// Recorder is a Listener that keeps every event, for tests and tools.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) Listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Notify fires after each recorded event; wakeups may be coalesced.
func (r *Recorder) Notify() <-chan struct{} { return r.notify }

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
