package core

import "sync"

// Order keeps the commands and answers of one client in sequence while
// several workers share the queues. Sequence numbers start at zero.
type Order struct {
	mu   sync.Mutex
	cond *sync.Cond

	nextCommand uint64
	executing   uint64
	nextAnswer  uint64
	delivering  uint64
}

// NewOrder creates a turnstile for one client.
func NewOrder() *Order {
	o := &Order{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// NextCommand hands out the sequence number of the next submitted command.
func (o *Order) NextCommand() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.nextCommand
	o.nextCommand++
	return seq
}

// WaitExec blocks until the command numbered seq may run.
func (o *Order) WaitExec(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.executing != seq {
		o.cond.Wait()
	}
}

// DoneExec lets the next command run.
func (o *Order) DoneExec() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.executing++
	o.cond.Broadcast()
}

// NextAnswer hands out the delivery sequence of an answer. Callers hold the
// execution turn, so answers are numbered in execution order.
func (o *Order) NextAnswer() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.nextAnswer
	o.nextAnswer++
	return seq
}

// WaitDelivery blocks until the answer numbered seq may be written.
func (o *Order) WaitDelivery(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.delivering != seq {
		o.cond.Wait()
	}
}

// DoneDelivery lets the next answer be written.
func (o *Order) DoneDelivery() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivering++
	o.cond.Broadcast()
}
