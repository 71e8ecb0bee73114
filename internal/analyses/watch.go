package analyses

import "sync"

// Broadcaster fans record snapshots out to websocket watchers. Slow
// subscribers drop intermediate snapshots rather than stalling the pipeline.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan AnalysisRecord]struct{}
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan AnalysisRecord]struct{})}
}

// Subscribe registers a watcher. The returned cancel func must be called to
// release the subscription.
func (b *Broadcaster) Subscribe() (<-chan AnalysisRecord, func()) {
	ch := make(chan AnalysisRecord, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber without blocking.
func (b *Broadcaster) Publish(record AnalysisRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- record:
		default:
		}
	}
}
