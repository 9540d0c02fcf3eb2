package ledger

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultPublishTimeout bounds a single Publish call made by the outbox.
const DefaultPublishTimeout = 10 * time.Second

type pending struct {
	ctx context.Context
	n   Notification
}

// outbox hands committed notifications to the publisher on a single goroutine, in the order
// they were pushed. push never blocks on the publisher.
type outbox struct {
	pub     Publisher
	timeout time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pending
	busy   bool
	closed bool
	done   chan struct{}
}

func newOutbox(pub Publisher, timeout time.Duration) *outbox {
	o := &outbox{pub: pub, timeout: timeout, done: make(chan struct{})}
	o.cond = sync.NewCond(&o.mu)
	go o.run()
	return o
}

func (o *outbox) push(ctx context.Context, n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		log.Printf("ledger: outbox closed, dropping %s #%d", n.Name, n.Seq)
		return
	}
	o.queue = append(o.queue, pending{ctx: context.WithoutCancel(ctx), n: n})
	o.cond.Broadcast()
}

func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		for len(o.queue) == 0 && !o.closed {
			o.cond.Wait()
		}
		if len(o.queue) == 0 {
			o.mu.Unlock()
			return
		}
		next := o.queue
		o.queue = nil
		o.busy = true
		o.mu.Unlock()

		for _, p := range next {
			o.deliver(p)
		}

		o.mu.Lock()
		o.busy = false
		o.cond.Broadcast()
		o.mu.Unlock()
	}
}

func (o *outbox) deliver(p pending) {
	ctx, cancel := context.WithTimeout(p.ctx, o.timeout)
	defer cancel()
	if err := o.pub.Publish(ctx, p.n); err != nil {
		log.Printf("ledger: publish %s #%d failed: %v", p.n.Name, p.n.Seq, err)
	}
}

// flush waits until everything pushed so far has been handed to the publisher.
func (o *outbox) flush() {
	o.mu.Lock()
	for len(o.queue) > 0 || o.busy {
		o.cond.Wait()
	}
	o.mu.Unlock()
}

// close delivers what is queued, then stops the goroutine. Later pushes are dropped.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.cond.Broadcast()
	o.mu.Unlock()
	<-o.done
}
