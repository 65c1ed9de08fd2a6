package ingest

import "sync"

// Broker fans out ProgressEvents for in-flight jobs to subscribers, keyed by
// job id. Grounded on the teacher-adjacent hive WebSocketManager's
// map-plus-mutex registry, adapted from a connection registry to a
// channel-per-subscriber pub/sub since progress frames are relayed to
// whichever transport (websocket, SSE, CLI) is listening rather than written
// directly to a socket here.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]chan ProgressEvent
}

// NewBroker returns a ready-to-use Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]chan ProgressEvent)}
}

// Subscribe registers a new listener for jobID's progress events. Callers
// must range over the returned channel until it closes and then call the
// returned unsubscribe func (safe to call more than once).
func (b *Broker) Subscribe(jobID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 16)
	b.mu.Lock()
	b.subs[jobID] = append(b.subs[jobID], ch)
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[jobID]
			for i, c := range list {
				if c == ch {
					b.subs[jobID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish fans evt out to every current subscriber of jobID. Slow or absent
// subscribers never block the ingest job: a full channel drops the frame.
func (b *Broker) Publish(jobID string, evt ProgressEvent) {
	b.mu.Lock()
	listeners := append([]chan ProgressEvent(nil), b.subs[jobID]...)
	b.mu.Unlock()
	for _, ch := range listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Done closes and removes every subscriber channel for jobID. Call once the
// job's Run/ReindexByChange call has returned.
func (b *Broker) Done(jobID string) {
	b.mu.Lock()
	listeners := b.subs[jobID]
	delete(b.subs, jobID)
	b.mu.Unlock()
	for _, ch := range listeners {
		close(ch)
	}
}
