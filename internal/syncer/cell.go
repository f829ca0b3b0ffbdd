package syncer

import "sync"

// cell holds a value and notifies listeners of every update, in update order.
type cell[S any] struct {
	mu        sync.Mutex
	value     S
	listeners map[int]func(S)
	nextID    int

	notifyMu sync.Mutex
}

func newCell[S any](initial S) *cell[S] {
	return &cell[S]{value: initial, listeners: make(map[int]func(S))}
}

func (c *cell[S]) get() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *cell[S]) update(fn func(*S)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	fn(&c.value)
	v := c.value
	fns := make([]func(S), 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l)
	}
	c.mu.Unlock()

	for _, l := range fns {
		l(v)
	}
}

func (c *cell[S]) onChange(fn func(S)) func() {
	c.notifyMu.Lock()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	v := c.value
	c.mu.Unlock()
	fn(v)
	c.notifyMu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}
