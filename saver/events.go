package saver

import (
	"math"
	"sort"
	"sync"
)

// PriorityHighest subscribes ahead of every other display consumer.
const PriorityHighest = math.MaxInt

type displaySubscription struct {
	id       uint64
	priority int
	handler  DisplayHandler
}

// DisplayBus is an in-process DisplayNotifier. Handlers run synchronously in
// Publish, highest priority first; equal priorities run in subscription
// order.
type DisplayBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []displaySubscription
}

// NewDisplayBus creates an empty bus.
func NewDisplayBus() *DisplayBus {
	return &DisplayBus{subs: make([]displaySubscription, 0)}
}

// Subscribe registers h at the given priority.
func (b *DisplayBus) Subscribe(priority int, h DisplayHandler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, displaySubscription{id: id, priority: priority, handler: h})
	sort.SliceStable(b.subs, func(i, j int) bool {
		return b.subs[i].priority > b.subs[j].priority
	})
	var once sync.Once
	return func() { once.Do(func() { b.unsubscribe(id) }) }, nil
}

func (b *DisplayBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every subscriber.
func (b *DisplayBus) Publish(ev DisplayEvent) {
	b.mu.RLock()
	subs := append([]displaySubscription(nil), b.subs...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.handler(ev)
	}
}

// Len returns the number of subscribers.
func (b *DisplayBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
