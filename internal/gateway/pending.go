package gateway

import (
	"sync"

	"gatelink/internal/protocol/wire"
)

type result struct {
	frame wire.Frame
	err   error
}

// pendingTable maps request ids to the channel their response resolves.
// Each channel is buffered and receives exactly one result.
type pendingTable struct {
	mu     sync.Mutex
	m      map[string]chan result
	closed error
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: make(map[string]chan result)}
}

func (p *pendingTable) add(id string) (<-chan result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return nil, p.closed
	}
	ch := make(chan result, 1)
	p.m[id] = ch
	return ch, nil
}

// resolve completes the request f answers. It reports false for ids that
// are unknown, already resolved or timed out.
func (p *pendingTable) resolve(f wire.Frame) bool {
	p.mu.Lock()
	ch, ok := p.m[f.ID]
	delete(p.m, f.ID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result{frame: f}
	return true
}

func (p *pendingTable) remove(id string) {
	p.mu.Lock()
	delete(p.m, id)
	p.mu.Unlock()
}

// closeAll fails every outstanding request with err and rejects new ones.
func (p *pendingTable) closeAll(err error) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed == nil {
		p.closed = err
	}
	n := len(p.m)
	for id, ch := range p.m {
		delete(p.m, id)
		ch <- result{err: err}
	}
	return n
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
