package observability

import "sync"

// pending counts tracking goroutines. Unlike a WaitGroup it allows adds
// while someone waits, and it refuses adds once closed.
type pending struct {
	mu     sync.Mutex
	n      int
	idle   chan struct{} // closed when n returns to zero
	closed bool
}

var drainedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// acquire registers one unit of work. It returns false after close.
func (p *pending) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if p.n == 0 {
		p.idle = make(chan struct{})
	}
	p.n++
	return true
}

func (p *pending) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n--
	if p.n == 0 {
		close(p.idle)
		p.idle = nil
	}
}

// drained returns a channel closed once no work is outstanding.
func (p *pending) drained() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.n == 0 {
		return drainedCh
	}
	return p.idle
}

// close stops further acquires and reports whether this call closed it.
func (p *pending) close() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}
