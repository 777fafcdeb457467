package transport

import (
	"context"
	"sync"

	"cohort-bank/models"
)

// Loopback is an in-process network of handlers keyed by address.
// Every request is served on its own goroutine, like a datagram arriving at a
// listener that hands negotiations off to tasks.
type Loopback struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	drop     func(addr string, payload []byte) bool
}

func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[string]Handler)}
}

func (l *Loopback) Register(addr string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[addr] = h
}

// DropWhen installs a filter; requests it matches are lost and never answered.
func (l *Loopback) DropWhen(drop func(addr string, payload []byte) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drop = drop
}

func (l *Loopback) Request(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	l.mu.RLock()
	h, ok := l.handlers[addr]
	drop := l.drop
	l.mu.RUnlock()

	if !ok || (drop != nil && drop(addr, payload)) {
		<-ctx.Done()
		return nil, models.Errorf(models.KindNoReply, "%s: %v", addr, ctx.Err())
	}

	reply := make(chan []byte, 1)
	req := append([]byte(nil), payload...)
	go func() {
		reply <- h.Handle(ctx, req)
	}()
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, models.Errorf(models.KindNoReply, "%s: %v", addr, ctx.Err())
	}
}
