// Package refs tracks server-side protocol handles: each live statement
// gets an id the client quotes on every call, and each handle can be
// expired after a period of disuse so abandoned clients do not pin server
// resources forever.
package refs

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"
)

const logRefs = false

// Id identifies one handle. Ids are never reused while the handle lives.
type Id uint32

var ErrBadRef = errors.New("bad ref")

type ref struct {
	value  any
	closer func() error
	timer  *time.Timer
}

// Manager is a mutex-guarded handle table. The zero value is ready to use.
type Manager struct {
	// Expiry is how long a handle may go unused before it is released.
	// Zero means never.
	Expiry time.Duration

	mu      sync.Mutex
	refs    map[Id]*ref
	nextRef Id
}

func (me *Manager) expiry() time.Duration {
	if me.Expiry == 0 {
		return math.MaxInt64
	}
	return me.Expiry
}

func (me *Manager) Len() int {
	me.mu.Lock()
	defer me.mu.Unlock()
	return len(me.refs)
}

func (me *Manager) GetAll() (ret map[Id]any) {
	me.mu.Lock()
	defer me.mu.Unlock()
	ret = make(map[Id]any, len(me.refs))
	for k, v := range me.refs {
		ret[k] = v.value
	}
	return
}

// New registers obj and returns its id. closer runs when the handle is
// released or expires.
func (me *Manager) New(obj any, closer func() error) (ret Id) {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.refs == nil {
		me.refs = make(map[Id]*ref)
	}
	for {
		if _, ok := me.refs[me.nextRef]; !ok {
			break
		}
		me.nextRef++
	}
	ret = me.nextRef
	me.nextRef++
	me.refs[ret] = &ref{
		value:  obj,
		closer: closer,
		timer:  time.AfterFunc(me.expiry(), me.expireRef(ret)),
	}
	if logRefs {
		log.Print(me.refs)
	}
	return
}

// Get returns the handle's value and restarts its expiry clock.
func (me *Manager) Get(id Id) (any, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	r, ok := me.refs[id]
	if !ok {
		return nil, ErrBadRef
	}
	r.timer.Reset(me.expiry())
	return r.value, nil
}

func (me *Manager) pop(id Id) (*ref, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	r, ok := me.refs[id]
	if !ok {
		return nil, ErrBadRef
	}
	r.timer.Stop()
	delete(me.refs, id)
	if logRefs {
		log.Print(me.refs)
	}
	return r, nil
}

// Release removes the handle and runs its closer. Releasing an unknown or
// already-released id is a no-op, which makes handle teardown idempotent.
func (me *Manager) Release(id Id) error {
	r, err := me.pop(id)
	if err == ErrBadRef {
		return nil
	}
	return r.closer()
}

func (me *Manager) expireRef(id Id) func() {
	return func() {
		r, err := me.pop(id)
		if err == ErrBadRef {
			return
		}
		log.Printf("expiring ref %d: %T", id, r.value)
		if err := r.closer(); err != nil {
			log.Print(err)
		}
	}
}
