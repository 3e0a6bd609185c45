package dynamo

import "sync/atomic"

// Body is the per-body state shared between the stepping goroutine and readers.
type Body struct {
	ID   BodyID
	Desc BodyDesc

	// OnTick, when set, runs once per cycle after the body's motion is refreshed.
	OnTick func(b *Body, dt float32)

	motion   atomic.Pointer[Motion]
	contacts contactBuffer
	owner    atomic.Pointer[ownerRef]

	// handle belongs to the simulation holding the body; stepping goroutine only.
	handle any
}

type ownerRef struct{ v any }

func NewBody(id BodyID, desc BodyDesc) *Body {
	if desc.Motion.Orientation == (Motion{}).Orientation {
		desc.Motion.Orientation = RestMotion(desc.Motion.Position).Orientation
	}
	b := &Body{ID: id, Desc: desc}
	m := desc.Motion
	b.motion.Store(&m)
	return b
}

// Motion returns the last published pose and velocity.
func (b *Body) Motion() Motion {
	return *b.motion.Load()
}

// Publish makes m the snapshot seen by readers.
func (b *Body) Publish(m Motion) {
	b.motion.Store(&m)
}

// Contacts returns the contact list of the last completed step. The slice
// must not be modified.
func (b *Body) Contacts() []Contact {
	return b.contacts.current()
}

// RecordContact appends to the list being built for the step in progress.
func (b *Body) RecordContact(c Contact) {
	b.contacts.processing = append(b.contacts.processing, c)
}

// SwapContacts publishes the in-progress contact list. Called once per step.
func (b *Body) SwapContacts() {
	b.contacts.swap()
}

func (b *Body) Handle() any     { return b.handle }
func (b *Body) SetHandle(h any) { b.handle = h }

// Owner returns the scene-side back-reference, or nil when detached.
func (b *Body) Owner() any {
	if r := b.owner.Load(); r != nil {
		return r.v
	}
	return nil
}

func (b *Body) Attach(owner any) {
	b.owner.Store(&ownerRef{v: owner})
}

// Detach clears every back-reference and discards published contacts.
func (b *Body) Detach() {
	b.owner.Store(nil)
	b.handle = nil
	b.contacts.reset()
}

// contactBuffer is a two-slot buffer; the active index flips once per step so
// readers only ever see a list that is no longer being written.
type contactBuffer struct {
	processing []Contact
	slots      [2]atomic.Pointer[[]Contact]
	active     atomic.Uint32
}

func (c *contactBuffer) swap() {
	next := 1 - c.active.Load()
	list := c.processing
	c.slots[next].Store(&list)
	c.active.Store(next)
	c.processing = nil
}

func (c *contactBuffer) current() []Contact {
	if p := c.slots[c.active.Load()].Load(); p != nil {
		return *p
	}
	return nil
}

func (c *contactBuffer) reset() {
	c.processing = nil
	c.slots[0].Store(nil)
	c.slots[1].Store(nil)
}
