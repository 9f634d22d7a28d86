package token

import (
	"sync"
	"time"
)

// Denylist holds the ids of bearer tokens that were replaced before they
// expired. An entry is kept only until its token's own expiry.
type Denylist interface {
	Deny(jti string, until time.Time)
	Denied(jti string) bool
	Purge(now time.Time) int
}

var _ Denylist = (*MemoryDenylist)(nil)

// MemoryDenylist is the in-process Denylist used by a single server.
type MemoryDenylist struct {
	lock  sync.RWMutex
	until map[string]time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{until: make(map[string]time.Time)}
}

func (d *MemoryDenylist) Deny(jti string, until time.Time) {
	d.lock.Lock()
	d.until[jti] = until
	d.lock.Unlock()
}

func (d *MemoryDenylist) Denied(jti string) bool {
	d.lock.RLock()
	_, ok := d.until[jti]
	d.lock.RUnlock()
	return ok
}

// Purge forgets entries whose token has expired and returns how many.
func (d *MemoryDenylist) Purge(now time.Time) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	n := 0
	for jti, until := range d.until {
		if now.After(until) {
			delete(d.until, jti)
			n++
		}
	}
	return n
}

// Size is the number of tokens currently denied.
func (d *MemoryDenylist) Size() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.until)
}
