// Package statemachine implements the state-function pattern game drivers
// run on, following Rob Pike's lexer design: the states are functions over
// the entity, and each returns the next state. A nil state stops the
// machine.
package statemachine

import (
	"context"
	"sync"
)

// StateFn is one state of a machine over entity T. It returns the next
// state, or nil to stop.
type StateFn[T any] func(context.Context, *T) StateFn[T]

// Machine threads an entity through its state functions. Step and Run are
// not safe for concurrent use with each other; Current and Set are safe
// from any goroutine.
type Machine[T any] struct {
	entity *T

	mu      sync.RWMutex
	current StateFn[T]
}

// New creates a machine parked on the given initial state.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{entity: entity, current: initial}
}

// Step dispatches the current state once and records the transition. It
// reports whether the machine can step again.
func (m *Machine[T]) Step(ctx context.Context) bool {
	m.mu.RLock()
	state := m.current
	m.mu.RUnlock()
	if state == nil {
		return false
	}

	next := state(ctx, m.entity)

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()
	return next != nil
}

// Run steps until a state returns nil or ctx is cancelled between steps.
func (m *Machine[T]) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !m.Step(ctx) {
			return nil
		}
	}
}

// Current returns the state the machine is parked on.
func (m *Machine[T]) Current() StateFn[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set moves the machine to a state without dispatching it.
func (m *Machine[T]) Set(state StateFn[T]) {
	m.mu.Lock()
	m.current = state
	m.mu.Unlock()
}
