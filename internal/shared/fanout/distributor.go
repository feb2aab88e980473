// Package fanout delivers the latest value of a keyed record to any number of
// subscribers. Slow subscribers skip intermediate values but always end up
// holding the most recent one.
package fanout

import "sync"

type Distributor[T any] struct {
	mu      sync.RWMutex
	current map[string]T
	subs    map[string]map[*Subscription[T]]struct{}
}

func NewDistributor[T any]() *Distributor[T] {
	return &Distributor[T]{
		current: make(map[string]T),
		subs:    make(map[string]map[*Subscription[T]]struct{}),
	}
}

// Subscription receives values on C until Close is called. C has capacity one
// and only ever holds the newest undelivered value.
type Subscription[T any] struct {
	C <-chan T

	key  string
	ch   chan T
	d    *Distributor[T]
	once sync.Once
}

// Subscribe registers a subscriber for key. If a value exists it is already
// waiting on C when Subscribe returns.
func (d *Distributor[T]) Subscribe(key string) *Subscription[T] {
	ch := make(chan T, 1)
	s := &Subscription[T]{C: ch, key: key, ch: ch, d: d}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.subs[key] == nil {
		d.subs[key] = make(map[*Subscription[T]]struct{})
	}
	d.subs[key][s] = struct{}{}
	if v, ok := d.current[key]; ok {
		ch <- v
	}
	return s
}

// Close unregisters the subscription and closes C. Safe to call repeatedly.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		d := s.d
		d.mu.Lock()
		defer d.mu.Unlock()

		if set, ok := d.subs[s.key]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(d.subs, s.key)
			}
		}
		close(s.ch)
	})
}

// Publish replaces the value for key and offers it to every subscriber.
// It never blocks on a subscriber. Holding the write lock across the offers
// keeps concurrent publishers from leaving an older value in a subscriber's slot.
func (d *Distributor[T]) Publish(key string, v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.current[key] = v
	for s := range d.subs[key] {
		Offer(s.ch, v)
	}
}

// Get returns the current value for key.
func (d *Distributor[T]) Get(key string) (T, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.current[key]
	return v, ok
}

// Snapshot copies every current value.
func (d *Distributor[T]) Snapshot() map[string]T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]T, len(d.current))
	for k, v := range d.current {
		out[k] = v
	}
	return out
}

// Subscribers reports how many subscriptions are open for key.
func (d *Distributor[T]) Subscribers(key string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[key])
}

// Offer puts v on a buffered channel, replacing a pending value instead of
// waiting for the reader.
func Offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
