package collector

import "sync"

// timeoutThreshold is the number of consecutive timed-out requests that
// triggers a batch-width halving.
const timeoutThreshold = 3

// adaptiveBatch tracks the batch width for one language. The width
// halves (down to 1) after timeoutThreshold consecutive timeouts and
// doubles back toward the configured maximum after a batch that saw no
// timeouts. Safe for concurrent use by batch workers.
type adaptiveBatch struct {
	mu                  sync.Mutex
	max                 int
	width               int
	consecutiveTimeouts int
	sawTimeout          bool
}

func newAdaptiveBatch(size int) *adaptiveBatch {
	if size < 1 {
		size = 1
	}
	return &adaptiveBatch{max: size, width: size}
}

func (b *adaptiveBatch) Width() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width
}

// RecordTimeout notes one timed-out request.
func (b *adaptiveBatch) RecordTimeout() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sawTimeout = true
	b.consecutiveTimeouts++
	if b.consecutiveTimeouts >= timeoutThreshold {
		b.consecutiveTimeouts = 0
		if b.width > 1 {
			b.width /= 2
		}
	}
}

// RecordSuccess resets the consecutive-timeout streak.
func (b *adaptiveBatch) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveTimeouts = 0
}

// EndBatch closes out one batch. A clean batch grows the width again.
func (b *adaptiveBatch) EndBatch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sawTimeout && b.width < b.max {
		b.width *= 2
		if b.width > b.max {
			b.width = b.max
		}
	}
	b.sawTimeout = false
}
