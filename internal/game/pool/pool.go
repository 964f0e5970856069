// Package pool provides a generic object arena with a free list.
//
// Objects are allocated once and recycled for the lifetime of the pool.
// Callers address them through generation-tagged handles, so a handle kept
// after Release can never reach the object's next occupant.
package pool

// Handle addresses one slot of a Pool.
// The zero Handle is never valid because generations start at 1.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Stats is a point-in-time view of a pool's partition.
type Stats struct {
	Pooled  int    `json:"pooled"`  // objects sitting on the free stack
	InUse   int    `json:"inUse"`   // objects handed out and not yet released
	Total   int    `json:"total"`   // Pooled + InUse
	Created uint64 `json:"created"` // factory calls
	Reused  uint64 `json:"reused"`  // acquisitions served from the free stack
}

// Pool is an arena of *T with a free stack and an in-use set.
// Every object ever created is in exactly one of the two.
//
// Pool is not safe for concurrent use; the simulation step owns it.
type Pool[T any] struct {
	items   []*T
	gens    []uint32
	inUse   []bool
	free    []uint32 // stack of free slot indices
	factory func() *T
	reset   func(*T)
	maxSize int // 0 = unbounded

	active  int
	created uint64
	reused  uint64
}

// New creates a pool. reset is called on every release and must zero all
// mutable fields. maxSize caps the number of objects ever created (0 = no cap).
func New[T any](factory func() *T, reset func(*T), maxSize int) *Pool[T] {
	if reset == nil {
		reset = func(*T) {}
	}
	return &Pool[T]{
		factory: factory,
		reset:   reset,
		maxSize: maxSize,
	}
}

// Prewarm creates n objects up front and parks them on the free stack.
// It stops early at the pool cap.
func (p *Pool[T]) Prewarm(n int) {
	for i := 0; i < n; i++ {
		if p.maxSize > 0 && len(p.items) >= p.maxSize {
			return
		}
		idx := p.grow()
		p.free = append(p.free, idx)
	}
}

func (p *Pool[T]) grow() uint32 {
	obj := p.factory()
	p.reset(obj)
	p.items = append(p.items, obj)
	p.gens = append(p.gens, 1)
	p.inUse = append(p.inUse, false)
	p.created++
	return uint32(len(p.items) - 1)
}

// Acquire hands out a recycled object, or a new one from the factory when
// the free stack is empty. ok is false only when the pool is at its cap.
func (p *Pool[T]) Acquire() (obj *T, h Handle, ok bool) {
	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
		p.reused++
	} else {
		if p.maxSize > 0 && len(p.items) >= p.maxSize {
			return nil, Handle{}, false
		}
		idx = p.grow()
	}

	p.inUse[idx] = true
	p.active++
	return p.items[idx], Handle{Index: idx, Gen: p.gens[idx]}, true
}

// Get resolves a handle. It fails for released or stale handles.
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	if !p.valid(h) {
		return nil, false
	}
	return p.items[h.Index], true
}

func (p *Pool[T]) valid(h Handle) bool {
	return int(h.Index) < len(p.items) && p.inUse[h.Index] && p.gens[h.Index] == h.Gen
}

// Release resets the object and returns it to the free stack.
// Releasing a stale or already-released handle is a no-op; the return value
// reports whether anything was released.
func (p *Pool[T]) Release(h Handle) bool {
	if !p.valid(h) {
		return false
	}
	p.reset(p.items[h.Index])
	p.inUse[h.Index] = false
	p.gens[h.Index]++
	p.free = append(p.free, h.Index)
	p.active--
	return true
}

// ReleaseAll returns every in-use object to the free stack.
func (p *Pool[T]) ReleaseAll() {
	for i, used := range p.inUse {
		if used {
			p.Release(Handle{Index: uint32(i), Gen: p.gens[i]})
		}
	}
}

// InUse returns the number of objects currently handed out.
func (p *Pool[T]) InUse() int { return p.active }

// Full reports whether the next Acquire would fail.
func (p *Pool[T]) Full() bool {
	return len(p.free) == 0 && p.maxSize > 0 && len(p.items) >= p.maxSize
}

// Stats returns the current partition counts.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Pooled:  len(p.free),
		InUse:   p.active,
		Total:   len(p.items),
		Created: p.created,
		Reused:  p.reused,
	}
}
