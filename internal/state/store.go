// Package state keeps the latest known state of every upstream entity and
// notifies observers when an entity they watch changes.
package state

import (
	"sync"

	"github.com/tkfj/hass-dewpoint/internal/dewpoint"
)

type entityState struct {
	value    string
	hasValue bool
	unit     string
}

// Store is an in-memory entity state table. The zero value is not usable; use NewStore.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]*entityState
	observers map[uint64]*observer
	nextID    uint64
}

type observer struct {
	ids map[string]struct{}
	fn  func()
}

func NewStore() *Store {
	return &Store{
		entities:  make(map[string]*entityState),
		observers: make(map[uint64]*observer),
	}
}

// Get returns a snapshot of entityID, or nil when the entity has no known state.
func (s *Store) Get(entityID string) *dewpoint.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	if !ok || !e.hasValue {
		return nil
	}
	return &dewpoint.Reading{Value: e.value, Unit: e.unit}
}

// SetState records the raw state of entityID and notifies observers.
func (s *Store) SetState(entityID, value string) {
	s.update(entityID, func(e *entityState) bool {
		changed := !e.hasValue || e.value != value
		e.value = value
		e.hasValue = true
		return changed
	})
}

// SetUnit records the unit_of_measurement attribute of entityID and notifies
// observers when the entity already has a state.
func (s *Store) SetUnit(entityID, unit string) {
	s.update(entityID, func(e *entityState) bool {
		changed := e.unit != unit
		e.unit = unit
		return changed && e.hasValue
	})
}

// Remove forgets entityID. Observers see it as absent.
func (s *Store) Remove(entityID string) {
	s.mu.Lock()
	e, ok := s.entities[entityID]
	delete(s.entities, entityID)
	fns := s.observersOf(entityID)
	s.mu.Unlock()

	if ok && e.hasValue {
		notify(fns)
	}
}

// Subscribe calls fn whenever any of entityIDs changes. fn runs on the
// goroutine that applied the change, outside the store lock, so it may call Get.
// The returned func cancels the subscription and is safe to call more than once.
func (s *Store) Subscribe(entityIDs []string, fn func()) (unsubscribe func()) {
	ids := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		ids[id] = struct{}{}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = &observer{ids: ids, fn: fn}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) observerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

func (s *Store) update(entityID string, apply func(*entityState) bool) {
	s.mu.Lock()
	e, ok := s.entities[entityID]
	if !ok {
		e = &entityState{}
		s.entities[entityID] = e
	}
	changed := apply(e)
	var fns []func()
	if changed {
		fns = s.observersOf(entityID)
	}
	s.mu.Unlock()

	notify(fns)
}

// observersOf must be called with s.mu held.
func (s *Store) observersOf(entityID string) []func() {
	var fns []func()
	for _, o := range s.observers {
		if _, ok := o.ids[entityID]; ok {
			fns = append(fns, o.fn)
		}
	}
	return fns
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
